package structured

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	monitoringmetrics "github.com/repcoach/repcoach/engine/infra/monitoring/metrics"
)

var (
	metricsOnce   sync.Once
	repairCounter metric.Int64Counter
)

func recordRepair(ctx context.Context, outcome string) {
	metricsOnce.Do(func() {
		counter, err := otel.GetMeterProvider().Meter("repcoach.structured").Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("structured", "validations_total"),
			metric.WithDescription("Structured output validations by outcome"),
		)
		if err == nil {
			repairCounter = counter
		}
	})
	if repairCounter == nil {
		return
	}
	repairCounter.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
