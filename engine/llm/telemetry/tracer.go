package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/repcoach/repcoach/engine/core"
	"github.com/repcoach/repcoach/pkg/logger"
)

// StepRecord is one entry of a trace.
type StepRecord struct {
	Seq     int
	Name    string
	Delta   time.Duration
	Elapsed time.Duration
	Fields  []any
}

// Tracer emits ordered, timed steps for a single unit of work:
//
//	[scope] #3 tool_executed +12ms (T+840ms)
type Tracer struct {
	mu    sync.Mutex
	id    string
	scope string
	now   func() time.Time
	start time.Time
	last  time.Time
	steps []StepRecord
}

func NewTracer(scope string) *Tracer {
	return newTracer(scope, time.Now)
}

func newTracer(scope string, now func() time.Time) *Tracer {
	started := now()
	id, err := core.NewID()
	if err != nil {
		id = core.ID(fmt.Sprintf("%s-%d", scope, started.UnixNano()))
	}
	return &Tracer{id: id.String(), scope: scope, now: now, start: started, last: started}
}

// Start creates a tracer and stores it on ctx.
func Start(ctx context.Context, scope string) (context.Context, *Tracer) {
	t := NewTracer(scope)
	return ContextWithTracer(ctx, t), t
}

func (t *Tracer) ID() string { return t.id }

func (t *Tracer) Step(ctx context.Context, name string, keyvals ...any) {
	t.mu.Lock()
	current := t.now()
	rec := StepRecord{
		Seq:     len(t.steps) + 1,
		Name:    name,
		Delta:   current.Sub(t.last),
		Elapsed: current.Sub(t.start),
		Fields:  keyvals,
	}
	t.last = current
	t.steps = append(t.steps, rec)
	t.mu.Unlock()

	msg := fmt.Sprintf("[%s] #%d %s +%dms (T+%dms)",
		t.scope, rec.Seq, name, rec.Delta.Milliseconds(), rec.Elapsed.Milliseconds())
	logger.FromContext(ctx).Debug(msg, append([]any{"trace_id", t.id}, keyvals...)...)
}

// Steps returns a copy of the recorded steps.
func (t *Tracer) Steps() []StepRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StepRecord, len(t.steps))
	copy(out, t.steps)
	return out
}

// Names lists step names in order.
func (t *Tracer) Names() []string {
	steps := t.Steps()
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}
