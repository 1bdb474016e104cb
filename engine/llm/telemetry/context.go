package telemetry

import (
	"context"

	"github.com/repcoach/repcoach/pkg/logger"
)

type ctxKey string

const tracerKey ctxKey = "llm_step_tracer"

// ContextWithTracer stores t on ctx so nested components append to the same trace.
func ContextWithTracer(ctx context.Context, t *Tracer) context.Context {
	return context.WithValue(ctx, tracerKey, t)
}

// TracerFromContext returns the active tracer, or nil.
func TracerFromContext(ctx context.Context) *Tracer {
	if ctx == nil {
		return nil
	}
	t, _ := ctx.Value(tracerKey).(*Tracer)
	return t
}

// Logger returns a logger enriched with the trace id when one is active.
func Logger(ctx context.Context) logger.Logger {
	log := logger.FromContext(ctx)
	if t := TracerFromContext(ctx); t != nil && t.id != "" {
		return log.With("trace_id", t.id)
	}
	return log
}

// Step records a step on the tracer carried by ctx. It is a no-op without one.
func Step(ctx context.Context, name string, keyvals ...any) {
	if t := TracerFromContext(ctx); t != nil {
		t.Step(ctx, name, keyvals...)
	}
}
