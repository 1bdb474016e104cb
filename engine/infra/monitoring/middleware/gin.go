package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/repcoach/repcoach/engine/infra/monitoring/metrics"
	"github.com/repcoach/repcoach/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	httpRequestsTotal    metric.Int64Counter
	httpRequestDuration  metric.Float64Histogram
	httpRequestsInFlight metric.Int64UpDownCounter
	initOnce             sync.Once
	initMutex            sync.Mutex
)

func initMetrics(ctx context.Context, meter metric.Meter) {
	if meter == nil {
		return
	}
	log := logger.FromContext(ctx)
	initOnce.Do(func() {
		var err error
		httpRequestsTotal, err = meter.Int64Counter(
			metrics.MetricNameWithSubsystem("http", "requests_total"),
			metric.WithDescription("Total HTTP requests"),
		)
		if err != nil {
			log.Error("Failed to create http requests total counter", "error", err)
		}
		httpRequestDuration, err = meter.Float64Histogram(
			metrics.MetricNameWithSubsystem("http", "request_duration_seconds"),
			metric.WithDescription("HTTP request latency"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(metrics.HTTPDurationBuckets...),
		)
		if err != nil {
			log.Error("Failed to create http request duration histogram", "error", err)
		}
		httpRequestsInFlight, err = meter.Int64UpDownCounter(
			metrics.MetricNameWithSubsystem("http", "requests_in_flight"),
			metric.WithDescription("Currently active HTTP requests"),
		)
		if err != nil {
			log.Error("Failed to create http requests in flight counter", "error", err)
		}
	})
}

// ResetMetricsForTesting resets the metrics initialization state for testing
func ResetMetricsForTesting() {
	initMutex.Lock()
	defer initMutex.Unlock()
	httpRequestsTotal = nil
	httpRequestDuration = nil
	httpRequestsInFlight = nil
	initOnce = sync.Once{}
}

// HTTPMetrics returns a Gin middleware that collects HTTP metrics
func HTTPMetrics(ctx context.Context, meter metric.Meter) gin.HandlerFunc {
	initMetrics(ctx, meter)
	return func(c *gin.Context) {
		if httpRequestsTotal == nil || httpRequestDuration == nil || httpRequestsInFlight == nil {
			c.Next()
			return
		}
		reqCtx := c.Request.Context()
		start := time.Now()
		httpRequestsInFlight.Add(reqCtx, 1)
		defer httpRequestsInFlight.Add(context.WithoutCancel(reqCtx), -1)
		c.Next()
		recordMetrics(c, start)
	}
}

func recordMetrics(c *gin.Context, start time.Time) {
	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	attrs := metric.WithAttributes(
		attribute.String("method", c.Request.Method),
		attribute.String("path", path),
		attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
	)
	ctx := context.WithoutCancel(c.Request.Context())
	httpRequestsTotal.Add(ctx, 1, attrs)
	httpRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}
