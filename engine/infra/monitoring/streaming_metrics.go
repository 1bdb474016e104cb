package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/repcoach/repcoach/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Stream kinds served over SSE.
const (
	StreamChat     = "chat"
	StreamDescribe = "describe"
)

var (
	streamDurationBuckets   = []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300}
	timeToFirstEventBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20}
)

// StreamingMetrics captures SSE stream lifecycle telemetry. The zero value
// records nothing.
type StreamingMetrics struct {
	activeStreams    metric.Int64UpDownCounter
	streamDuration   metric.Float64Histogram
	firstEventTiming metric.Float64Histogram
	eventsEmitted    metric.Int64Counter
	streamErrors     metric.Int64Counter
}

func newStreamingMetrics(meter metric.Meter) (*StreamingMetrics, error) {
	m := &StreamingMetrics{}
	if meter == nil {
		return m, nil
	}
	var err error
	if m.activeStreams, err = meter.Int64UpDownCounter(
		metrics.MetricNameWithSubsystem("stream", "active_connections"),
		metric.WithDescription("Active SSE connections grouped by stream kind"),
	); err != nil {
		return nil, fmt.Errorf("create stream active connections counter: %w", err)
	}
	if m.streamDuration, err = meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("stream", "connection_duration_seconds"),
		metric.WithDescription("Duration of SSE connections in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(streamDurationBuckets...),
	); err != nil {
		return nil, fmt.Errorf("create stream duration histogram: %w", err)
	}
	if m.firstEventTiming, err = meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("stream", "time_to_first_event_seconds"),
		metric.WithDescription("Time between connection acceptance and first event"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(timeToFirstEventBuckets...),
	); err != nil {
		return nil, fmt.Errorf("create time-to-first-event histogram: %w", err)
	}
	if m.eventsEmitted, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("stream", "events_total"),
		metric.WithDescription("SSE events emitted grouped by stream kind and event type"),
	); err != nil {
		return nil, fmt.Errorf("create stream events counter: %w", err)
	}
	if m.streamErrors, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("stream", "errors_total"),
		metric.WithDescription("SSE streams that ended with an error event"),
	); err != nil {
		return nil, fmt.Errorf("create stream errors counter: %w", err)
	}
	return m, nil
}

// StreamSession tracks one open SSE connection.
type StreamSession struct {
	metrics *StreamingMetrics
	kind    string
	started time.Time
	first   bool
}

// Open records a new connection of the given kind.
func (m *StreamingMetrics) Open(ctx context.Context, kind string) *StreamSession {
	if m != nil && m.activeStreams != nil {
		m.activeStreams.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
	return &StreamSession{metrics: m, kind: kind, started: time.Now()}
}

// Event counts one emitted event; the first one also records latency.
func (s *StreamSession) Event(ctx context.Context, eventType string) {
	m := s.metrics
	if m == nil || m.eventsEmitted == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if !s.first {
		s.first = true
		m.firstEventTiming.Record(ctx, time.Since(s.started).Seconds(),
			metric.WithAttributes(attribute.String("kind", s.kind)))
	}
	m.eventsEmitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", s.kind),
		attribute.String("event_type", eventType),
	))
}

// Fail counts a stream that ended with an error.
func (s *StreamSession) Fail(ctx context.Context, reason string) {
	m := s.metrics
	if m == nil || m.streamErrors == nil {
		return
	}
	m.streamErrors.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("kind", s.kind),
		attribute.String("reason", reason),
	))
}

// Close records the connection duration and releases the active slot.
func (s *StreamSession) Close(ctx context.Context) {
	m := s.metrics
	if m == nil || m.activeStreams == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	attrs := metric.WithAttributes(attribute.String("kind", s.kind))
	m.streamDuration.Record(ctx, time.Since(s.started).Seconds(), attrs)
	m.activeStreams.Add(ctx, -1, attrs)
}
