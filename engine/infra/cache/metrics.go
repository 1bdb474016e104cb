package cache

import (
	"context"
	"sync"

	monitoringmetrics "github.com/repcoach/repcoach/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	cacheMetricsOnce sync.Once
	cacheLookups     metric.Int64Counter
)

func initCacheMetrics() {
	cacheMetricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("repcoach.cache")
		var err error
		cacheLookups, err = meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("cache", "lookups_total"),
			metric.WithDescription("Cache lookups by tier and result"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

func recordLookup(ctx context.Context, tier string, hit bool) {
	initCacheMetrics()
	if cacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("result", result),
	))
}
