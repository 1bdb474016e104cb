package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	monitoringmetrics "github.com/repcoach/repcoach/engine/infra/monitoring/metrics"
)

const (
	metricSubsystem = "orchestrator"

	outcomeSuccess  = "success"
	outcomeError    = "error"
	outcomeNotFound = "not_found"
	outcomeSkipped  = "skipped"
)

var (
	metricsOnce    sync.Once
	metricsErr     error
	roundHistogram metric.Int64Histogram
	loopCounter    metric.Int64Counter
	toolCounter    metric.Int64Counter
	toolHistogram  metric.Float64Histogram
)

func ensureMetrics() {
	metricsOnce.Do(func() {
		metricsErr = initMetrics(otel.GetMeterProvider().Meter("repcoach.orchestrator"))
	})
}

func initMetrics(meter metric.Meter) error {
	var err error
	roundHistogram, err = meter.Int64Histogram(
		monitoringmetrics.MetricNameWithSubsystem(metricSubsystem, "rounds"),
		metric.WithDescription("Model rounds used per turn"),
		metric.WithExplicitBucketBoundaries(monitoringmetrics.RoundBuckets...),
	)
	if err != nil {
		return err
	}
	loopCounter, err = meter.Int64Counter(
		monitoringmetrics.MetricNameWithSubsystem(metricSubsystem, "turns_total"),
		metric.WithDescription("Tool loop turns by final state"),
	)
	if err != nil {
		return err
	}
	toolCounter, err = meter.Int64Counter(
		monitoringmetrics.MetricNameWithSubsystem(metricSubsystem, "tool_executions_total"),
		metric.WithDescription("Tool executions by tool and outcome"),
	)
	if err != nil {
		return err
	}
	toolHistogram, err = meter.Float64Histogram(
		monitoringmetrics.MetricNameWithSubsystem(metricSubsystem, "tool_duration_seconds"),
		metric.WithDescription("Tool execution latency"),
		metric.WithUnit("s"),
	)
	return err
}

func recordTurn(ctx context.Context, state string, rounds int) {
	ensureMetrics()
	if metricsErr != nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	loopCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
	roundHistogram.Record(ctx, int64(rounds))
}

func recordToolExecution(ctx context.Context, name, outcome string, duration time.Duration) {
	ensureMetrics()
	if metricsErr != nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	attrs := metric.WithAttributes(attribute.String("tool", name), attribute.String("outcome", outcome))
	toolCounter.Add(ctx, 1, attrs)
	if duration > 0 {
		toolHistogram.Record(ctx, duration.Seconds(), attrs)
	}
}
