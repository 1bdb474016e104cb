package schema

import (
	"context"
	"sync"
	"time"

	monitoringmetrics "github.com/repcoach/repcoach/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const schemaMetricSubsystem = "schema"

var (
	schemaMetricsOnce       sync.Once
	schemaMetricsErr        error
	schemaCompileCounter    metric.Int64Counter
	schemaValidationCounter metric.Int64Counter
	schemaValidateHistogram metric.Float64Histogram
)

var schemaValidateBuckets = []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05}

func ensureSchemaMetrics() {
	schemaMetricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("repcoach.schema")
		schemaMetricsErr = initSchemaMetrics(meter)
	})
}

func initSchemaMetrics(meter metric.Meter) error {
	var err error
	schemaCompileCounter, err = meter.Int64Counter(
		monitoringmetrics.MetricNameWithSubsystem(schemaMetricSubsystem, "compiles_total"),
		metric.WithDescription("Schema compilations, labeled by cache hit"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}
	schemaValidationCounter, err = meter.Int64Counter(
		monitoringmetrics.MetricNameWithSubsystem(schemaMetricSubsystem, "validations_total"),
		metric.WithDescription("Schema validations performed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}
	schemaValidateHistogram, err = meter.Float64Histogram(
		monitoringmetrics.MetricNameWithSubsystem(schemaMetricSubsystem, "validate_duration_seconds"),
		metric.WithDescription("Schema validation duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(schemaValidateBuckets...),
	)
	return err
}

func recordSchemaCompile(ctx context.Context, _ time.Duration, cacheHit bool) {
	ensureSchemaMetrics()
	if schemaMetricsErr != nil || schemaCompileCounter == nil {
		return
	}
	schemaCompileCounter.Add(
		metricsContext(ctx),
		1,
		metric.WithAttributes(attribute.Bool("cache_hit", cacheHit)),
	)
}

func recordSchemaValidation(ctx context.Context, duration time.Duration, valid bool) {
	ensureSchemaMetrics()
	if schemaMetricsErr != nil {
		return
	}
	ctx = metricsContext(ctx)
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	if schemaValidationCounter != nil {
		schemaValidationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	if duration > 0 && schemaValidateHistogram != nil {
		schemaValidateHistogram.Record(ctx, duration.Seconds())
	}
}

func metricsContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
