package ratelimit

import (
	"context"
	"sync"

	"github.com/repcoach/repcoach/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	rateLimitBlocksTotal metric.Int64Counter
	metricsOnce          sync.Once
)

// InitMetrics initializes rate limiting metrics
func InitMetrics(meter metric.Meter) error {
	var err error
	metricsOnce.Do(func() {
		rateLimitBlocksTotal, err = meter.Int64Counter(
			metrics.MetricNameWithSubsystem("ratelimit", "blocks_total"),
			metric.WithDescription("Requests blocked by rate limiting"),
		)
	})
	return err
}

func incrementBlockedRequests(ctx context.Context, route string, keyType string) {
	if rateLimitBlocksTotal != nil {
		rateLimitBlocksTotal.Add(context.WithoutCancel(ctx), 1,
			metric.WithAttributes(
				attribute.String("route", route),
				attribute.String("key_type", keyType),
			),
		)
	}
}
