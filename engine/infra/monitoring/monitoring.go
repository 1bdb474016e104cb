package monitoring

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/repcoach/repcoach/engine/infra/monitoring/middleware"
	"github.com/repcoach/repcoach/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "repcoach"

// Service owns the meter provider and the Prometheus registry behind /metrics.
type Service struct {
	meter             metric.Meter
	exporter          *prometheus.Exporter
	provider          *sdkmetric.MeterProvider
	registry          *prom.Registry
	streaming         *StreamingMetrics
	config            *Config
	initialized       bool
	initializationErr error
}

func newDisabledService(cfg *Config, initErr error) *Service {
	return &Service{
		config:            cfg,
		meter:             noop.NewMeterProvider().Meter(meterName),
		streaming:         &StreamingMetrics{},
		initialized:       false,
		initializationErr: initErr,
	}
}

// NewMonitoringService creates a new monitoring service with Prometheus exporter
func NewMonitoringService(ctx context.Context, cfg *Config) (*Service, error) {
	log := logger.FromContext(ctx)
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		log.Debug("Monitoring disabled, using no-op meter")
		return newDisabledService(cfg, nil), nil
	}
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)
	streaming, err := newStreamingMetrics(meter)
	if err != nil {
		return nil, err
	}
	service := &Service{
		meter:       meter,
		exporter:    exporter,
		provider:    provider,
		registry:    registry,
		streaming:   streaming,
		config:      cfg,
		initialized: true,
	}
	InitSystemMetrics(ctx, meter)
	log.Info("Monitoring service initialized", "path", cfg.Path)
	return service, nil
}

// Meter returns the OpenTelemetry meter for custom instrumentation
func (s *Service) Meter() metric.Meter {
	return s.meter
}

// Streaming returns the SSE lifecycle instruments. It is never nil.
func (s *Service) Streaming() *StreamingMetrics {
	return s.streaming
}

// Path is the route the exporter handler should be mounted on.
func (s *Service) Path() string {
	return s.config.Path
}

// GinMiddleware returns Gin middleware for HTTP metrics.
func (s *Service) GinMiddleware(ctx context.Context) gin.HandlerFunc {
	if !s.initialized {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return middleware.HTTPMetrics(ctx, s.meter)
}

// ExporterHandler returns an HTTP handler for the metrics endpoint
func (s *Service) ExporterHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.initialized {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte("Monitoring service not initialized")); err != nil {
				logger.FromContext(r.Context()).Error("Failed to write response", "error", err)
			}
			return
		}
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the monitoring service
func (s *Service) Shutdown(ctx context.Context) error {
	if s.provider != nil {
		return s.provider.Shutdown(ctx)
	}
	return nil
}

func (s *Service) IsInitialized() bool {
	return s.initialized
}

func (s *Service) InitializationError() error {
	return s.initializationErr
}

// SetAsGlobal installs the provider as the global meter provider so the
// gateway and orchestrator instruments export through it.
func (s *Service) SetAsGlobal() {
	if s.provider != nil {
		otel.SetMeterProvider(s.provider)
	}
}

// NewMonitoringServiceWithFallback degrades to a no-op service when the
// exporter cannot be created.
func NewMonitoringServiceWithFallback(ctx context.Context, cfg *Config) *Service {
	service, err := NewMonitoringService(ctx, cfg)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to initialize monitoring, using no-op implementation", "error", err)
		if cfg == nil {
			cfg = DefaultConfig()
		}
		return newDisabledService(cfg, err)
	}
	return service
}
