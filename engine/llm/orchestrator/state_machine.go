package orchestrator

import (
	"context"
	"time"

	"github.com/looplab/fsm"

	"github.com/repcoach/repcoach/engine/core"
	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
	"github.com/repcoach/repcoach/pkg/logger"
)

const (
	StateInit                = "init"
	StateRequesting          = "requesting"
	StateEvaluateResponse    = "evaluate_response"
	StateAwaitingToolResults = "awaiting_tool_results"
	StateFinalizing          = "finalizing"
	StateDone                = "done"
	StateFailed              = "failed"
)

const (
	EventStart           = "start"
	EventLLMResponse     = "llm_response"
	EventResponseNoTool  = "response_no_tool"
	EventResponseTools   = "response_with_tools"
	EventToolsFailed     = "tools_failed"
	EventToolSucceeded   = "tool_succeeded"
	EventSummaryReceived = "summary_received"
	EventFailure         = "failure"
)

type loopDeps interface {
	OnEnterRequesting(ctx context.Context, loopCtx *LoopContext) transitionResult
	OnEnterEvaluateResponse(ctx context.Context, loopCtx *LoopContext) transitionResult
	OnEnterAwaitingToolResults(ctx context.Context, loopCtx *LoopContext) transitionResult
	OnEnterFinalizing(ctx context.Context, loopCtx *LoopContext) transitionResult
	OnFailure(ctx context.Context, loopCtx *LoopContext, event string)
}

type transitionResult struct {
	Event string
	Err   error
}

// LoopContext is the mutable state of one turn, threaded through fsm events.
type LoopContext struct {
	Request    Request
	Messages   []llmadapter.Message
	Tools      []llmadapter.ToolDefinition
	Response   *llmadapter.LLMResponse
	Executions []ToolExecution
	Text       string
	Round      int
	MaxRounds  int

	err            error
	eventStartedAt time.Time
}

func newLoopFSM(ctx context.Context, deps loopDeps) *fsm.FSM {
	observer := newTransitionObserver(ctx)
	return fsm.NewFSM(StateInit, loopFSMEvents(), loopFSMCallbacks(observer, deps))
}

func loopFSMEvents() fsm.Events {
	return fsm.Events{
		{Name: EventStart, Src: []string{StateInit}, Dst: StateRequesting},
		{Name: EventLLMResponse, Src: []string{StateRequesting}, Dst: StateEvaluateResponse},
		{Name: EventResponseNoTool, Src: []string{StateEvaluateResponse}, Dst: StateDone},
		{Name: EventResponseTools, Src: []string{StateEvaluateResponse}, Dst: StateAwaitingToolResults},
		{Name: EventToolsFailed, Src: []string{StateAwaitingToolResults}, Dst: StateRequesting},
		{Name: EventToolSucceeded, Src: []string{StateAwaitingToolResults}, Dst: StateFinalizing},
		{Name: EventSummaryReceived, Src: []string{StateFinalizing}, Dst: StateDone},
		{
			Name: EventFailure,
			Src: []string{
				StateRequesting,
				StateEvaluateResponse,
				StateAwaitingToolResults,
				StateFinalizing,
			},
			Dst: StateFailed,
		},
	}
}

func loopFSMCallbacks(observer *transitionObserver, deps loopDeps) fsm.Callbacks {
	callbacks := fsm.Callbacks{
		"before_event": func(cbCtx context.Context, e *fsm.Event) { observer.BeforeEvent(cbCtx, e) },
		"after_event":  func(cbCtx context.Context, e *fsm.Event) { observer.AfterEvent(cbCtx, e) },
		"after_" + EventFailure: func(cbCtx context.Context, e *fsm.Event) {
			if deps == nil {
				return
			}
			obsCtx := observer.resolveContext(cbCtx)
			deps.OnFailure(obsCtx, loopContextFromEvent(obsCtx, e), e.Event)
		},
	}
	callbacks["enter_"+StateRequesting] = makeEnterCallback(observer, deps, loopDeps.OnEnterRequesting)
	callbacks["enter_"+StateEvaluateResponse] = makeEnterCallback(observer, deps, loopDeps.OnEnterEvaluateResponse)
	callbacks["enter_"+StateAwaitingToolResults] = makeEnterCallback(
		observer,
		deps,
		loopDeps.OnEnterAwaitingToolResults,
	)
	callbacks["enter_"+StateFinalizing] = makeEnterCallback(observer, deps, loopDeps.OnEnterFinalizing)
	return callbacks
}

func loopContextFromEvent(ctx context.Context, e *fsm.Event) *LoopContext {
	if e == nil {
		logger.FromContext(ctx).Error("FSM loop context lookup failed", "reason", "nil event")
		return &LoopContext{}
	}
	if len(e.Args) > 0 {
		if lc, ok := e.Args[0].(*LoopContext); ok && lc != nil {
			return lc
		}
	}
	logger.FromContext(ctx).Error("FSM loop context missing from event args", "event", e.Event)
	return &LoopContext{}
}

func applyTransitionResult(ctx context.Context, e *fsm.Event, result transitionResult) {
	if result.Event == "" && result.Err == nil {
		return
	}
	loopCtx := loopContextFromEvent(ctx, e)
	if result.Err != nil {
		loopCtx.err = result.Err
		if result.Event == "" {
			result.Event = EventFailure
		}
	}
	if err := e.FSM.Event(ctx, result.Event, loopCtx); err != nil && loopCtx.err == nil {
		loopCtx.err = err
	}
}

type transitionObserver struct {
	now     func() time.Time
	baseCtx context.Context
}

func newTransitionObserver(ctx context.Context) *transitionObserver {
	return &transitionObserver{now: time.Now, baseCtx: ctx}
}

func (o *transitionObserver) resolveContext(cbCtx context.Context) context.Context {
	if cbCtx != nil {
		return cbCtx
	}
	if o != nil && o.baseCtx != nil {
		return o.baseCtx
	}
	return context.TODO()
}

func (o *transitionObserver) BeforeEvent(cbCtx context.Context, e *fsm.Event) {
	ctx := o.resolveContext(cbCtx)
	loopCtx := loopContextFromEvent(ctx, e)
	loopCtx.eventStartedAt = o.now()
	logger.FromContext(ctx).Debug(
		"FSM transition start",
		"event", e.Event,
		"from_state", e.Src,
		"to_state", e.Dst,
		"round", loopCtx.Round,
	)
}

func (o *transitionObserver) AfterEvent(cbCtx context.Context, e *fsm.Event) {
	ctx := o.resolveContext(cbCtx)
	loopCtx := loopContextFromEvent(ctx, e)
	keyvals := []any{
		"event", e.Event,
		"from_state", e.Src,
		"to_state", e.Dst,
		"round", loopCtx.Round,
	}
	if !loopCtx.eventStartedAt.IsZero() {
		keyvals = append(keyvals, "duration_ms", o.now().Sub(loopCtx.eventStartedAt).Milliseconds())
	}
	if loopCtx.err != nil {
		keyvals = append(keyvals, "error", core.RedactError(loopCtx.err))
	}
	logger.FromContext(ctx).Debug("FSM transition complete", keyvals...)
}

func makeEnterCallback(
	observer *transitionObserver,
	deps loopDeps,
	handler func(loopDeps, context.Context, *LoopContext) transitionResult,
) fsm.Callback {
	return func(cbCtx context.Context, e *fsm.Event) {
		ctx := observer.resolveContext(cbCtx)
		loopCtx := loopContextFromEvent(ctx, e)
		logger.FromContext(ctx).Debug("FSM state entered", "state", e.Dst, "event", e.Event, "round", loopCtx.Round)
		if deps == nil {
			return
		}
		applyTransitionResult(ctx, e, handler(deps, ctx, loopCtx))
	}
}
