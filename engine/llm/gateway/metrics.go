package gateway

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	monitoringmetrics "github.com/repcoach/repcoach/engine/infra/monitoring/metrics"
)

const metricSubsystem = "llm"

var (
	metricsOnce    sync.Once
	metricsErr     error
	callCounter    metric.Int64Counter
	attemptCounter metric.Int64Counter
	retryCounter   metric.Int64Counter
	latency        metric.Float64Histogram
	tokenCounter   metric.Int64Counter
)

func ensureMetrics() {
	metricsOnce.Do(func() {
		metricsErr = initMetrics(otel.GetMeterProvider().Meter("repcoach.llm"))
	})
}

func initMetrics(meter metric.Meter) error {
	var err error
	callCounter, err = meter.Int64Counter(
		monitoringmetrics.MetricNameWithSubsystem(metricSubsystem, "calls_total"),
		metric.WithDescription("Model calls by kind and outcome"),
	)
	if err != nil {
		return err
	}
	attemptCounter, err = meter.Int64Counter(
		monitoringmetrics.MetricNameWithSubsystem(metricSubsystem, "attempts_total"),
		metric.WithDescription("Individual upstream attempts"),
	)
	if err != nil {
		return err
	}
	retryCounter, err = meter.Int64Counter(
		monitoringmetrics.MetricNameWithSubsystem(metricSubsystem, "retries_total"),
		metric.WithDescription("Transient failures that were retried"),
	)
	if err != nil {
		return err
	}
	tokenCounter, err = meter.Int64Counter(
		monitoringmetrics.MetricNameWithSubsystem(metricSubsystem, "tokens_total"),
		metric.WithDescription("Tokens reported by the provider"),
	)
	if err != nil {
		return err
	}
	latency, err = meter.Float64Histogram(
		monitoringmetrics.MetricNameWithSubsystem(metricSubsystem, "call_duration_seconds"),
		metric.WithDescription("Model call latency including retries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(monitoringmetrics.LLMDurationBuckets...),
	)
	return err
}

func recordAttempt(ctx context.Context, kind string, retried bool) {
	ensureMetrics()
	if metricsErr != nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	attemptCounter.Add(ctx, 1, attrs)
	if retried {
		retryCounter.Add(ctx, 1, attrs)
	}
}

func recordCall(ctx context.Context, kind, outcome string, duration time.Duration, usage *usageTotals) {
	ensureMetrics()
	if metricsErr != nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	callCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
	latency.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("kind", kind)))
	if usage == nil {
		return
	}
	tokenCounter.Add(ctx, int64(usage.prompt), metric.WithAttributes(attribute.String("type", "prompt")))
	tokenCounter.Add(ctx, int64(usage.completion), metric.WithAttributes(attribute.String("type", "completion")))
}

type usageTotals struct {
	prompt     int
	completion int
}
