package orchestrator

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"github.com/repcoach/repcoach/engine/core"
	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
	"github.com/repcoach/repcoach/engine/llm/telemetry"
	"github.com/repcoach/repcoach/pkg/logger"
)

// Orchestrator drives the bounded tool-calling loop for one turn:
// request, run any requested tools, and after the first successful tool
// ask once more with tools disabled for a summary.
type Orchestrator struct {
	caller Caller
	cfg    Config
}

func New(caller Caller, cfg Config) (*Orchestrator, error) {
	if caller == nil {
		return nil, core.NewError(fmt.Errorf("caller cannot be nil"), core.CodeInvalidRequest, nil)
	}
	return &Orchestrator{caller: caller, cfg: cfg}, nil
}

func (o *Orchestrator) Run(ctx context.Context, req Request) (_ *Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.run",
		attribute.Int("tools", req.Tools.Len()),
		attribute.Int("messages", len(req.Messages)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	loopCtx := &LoopContext{
		Request:   req,
		Messages:  slices.Clone(req.Messages),
		Tools:     req.Tools.Definitions(),
		MaxRounds: o.cfg.maxRounds(),
	}
	machine := newLoopFSM(ctx, o)
	if evErr := machine.Event(ctx, EventStart, loopCtx); evErr != nil && loopCtx.err == nil {
		loopCtx.err = evErr
	}
	state := machine.Current()
	recordTurn(ctx, state, loopCtx.Round)
	span.SetAttributes(attribute.Int("rounds", loopCtx.Round), attribute.String("state", state))
	if loopCtx.err != nil {
		return nil, loopCtx.err
	}
	if state != StateDone {
		return nil, core.NewError(
			fmt.Errorf("tool loop stopped in state %s", state),
			core.CodeProtocolViolation,
			nil,
		)
	}
	return &Result{Text: loopCtx.Text, ToolExecutions: loopCtx.Executions, Rounds: loopCtx.Round}, nil
}

func (o *Orchestrator) request(loopCtx *LoopContext, toolChoice string) *llmadapter.LLMRequest {
	opts := o.cfg.Options
	opts.ToolChoice = toolChoice
	opts.DisableParallelToolUse = true
	return &llmadapter.LLMRequest{
		SystemPrompt: loopCtx.Request.SystemPrompt,
		Messages:     slices.Clone(loopCtx.Messages),
		Tools:        loopCtx.Tools,
		Options:      opts,
	}
}

func (o *Orchestrator) OnEnterRequesting(ctx context.Context, loopCtx *LoopContext) transitionResult {
	if loopCtx.Round >= loopCtx.MaxRounds {
		return transitionResult{Err: loopExhausted(loopCtx.Round)}
	}
	loopCtx.Round++
	telemetry.Step(ctx, "llm_request", "round", loopCtx.Round, "messages", len(loopCtx.Messages))
	resp, err := o.caller.Complete(ctx, o.request(loopCtx, llmadapter.ToolChoiceAuto))
	if err != nil {
		return transitionResult{Err: err}
	}
	loopCtx.Response = resp
	telemetry.Step(ctx, "llm_response",
		"round", loopCtx.Round,
		"stop_reason", string(resp.StopReason),
		"tool_calls", len(resp.ToolCalls),
	)
	return transitionResult{Event: EventLLMResponse}
}

func (o *Orchestrator) OnEnterEvaluateResponse(_ context.Context, loopCtx *LoopContext) transitionResult {
	resp := loopCtx.Response
	if resp == nil {
		return transitionResult{Err: protocolViolation(loopCtx.Round)}
	}
	if len(resp.ToolCalls) == 0 {
		if resp.StopReason == llmadapter.StopToolUse {
			return transitionResult{Err: protocolViolation(loopCtx.Round)}
		}
		loopCtx.Text = resp.Content
		return transitionResult{Event: EventResponseNoTool}
	}
	loopCtx.Messages = append(loopCtx.Messages, llmadapter.Message{
		Role:      llmadapter.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})
	return transitionResult{Event: EventResponseTools}
}

func (o *Orchestrator) OnEnterAwaitingToolResults(ctx context.Context, loopCtx *LoopContext) transitionResult {
	executor := &toolExecutor{registry: loopCtx.Request.Tools}
	batch := executor.Execute(ctx, loopCtx.Response.ToolCalls)
	loopCtx.Executions = append(loopCtx.Executions, batch.executions...)
	if batch.fatal != nil {
		return transitionResult{Err: batch.fatal}
	}
	loopCtx.Messages = append(loopCtx.Messages, llmadapter.Message{
		Role:        llmadapter.RoleTool,
		ToolResults: batch.results,
	})
	if batch.succeeded {
		return transitionResult{Event: EventToolSucceeded}
	}
	return transitionResult{Event: EventToolsFailed}
}

// OnEnterFinalizing makes the one tools-disabled call. The mutation has
// already been persisted, so a failed summary leaves Text empty instead of
// failing the turn.
func (o *Orchestrator) OnEnterFinalizing(ctx context.Context, loopCtx *LoopContext) transitionResult {
	telemetry.Step(ctx, "llm_final_request", "round", loopCtx.Round)
	resp, err := o.caller.Complete(ctx, o.request(loopCtx, llmadapter.ToolChoiceNone))
	if err != nil {
		logger.FromContext(ctx).Warn("Final summary call failed", "error", core.RedactError(err))
		return transitionResult{Event: EventSummaryReceived}
	}
	loopCtx.Response = resp
	loopCtx.Text = resp.Content
	return transitionResult{Event: EventSummaryReceived}
}

func (o *Orchestrator) OnFailure(ctx context.Context, loopCtx *LoopContext, event string) {
	logger.FromContext(ctx).Warn(
		"Tool loop failed",
		"event", event,
		"round", loopCtx.Round,
		"executions", len(loopCtx.Executions),
		"error", core.RedactError(loopCtx.err),
	)
}
