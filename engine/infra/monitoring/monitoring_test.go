package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMonitoringService(t *testing.T) {
	t.Run("Should create a disabled service when config is nil", func(t *testing.T) {
		service, err := NewMonitoringService(t.Context(), nil)
		require.NoError(t, err)
		assert.False(t, service.IsInitialized())
		assert.Equal(t, "/metrics", service.Path())
		assert.NotNil(t, service.Meter())
		assert.NotNil(t, service.Streaming())
	})
	t.Run("Should fail with invalid config", func(t *testing.T) {
		service, err := NewMonitoringService(t.Context(), &Config{Enabled: true})
		require.Error(t, err)
		assert.Nil(t, service)
		assert.Contains(t, err.Error(), "monitoring path cannot be empty")
	})
	t.Run("Should initialize the Prometheus exporter when enabled", func(t *testing.T) {
		ResetSystemMetricsForTesting()
		service, err := NewMonitoringService(t.Context(), &Config{Enabled: true, Path: "/metrics"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = service.Shutdown(t.Context()) })
		assert.True(t, service.IsInitialized())
		assert.NotNil(t, service.exporter)
		assert.NotNil(t, service.registry)
	})
}

func TestNewMonitoringServiceWithFallback(t *testing.T) {
	t.Run("Should degrade to a no-op service on invalid config", func(t *testing.T) {
		service := NewMonitoringServiceWithFallback(t.Context(), &Config{Enabled: true, Path: "metrics"})
		require.NotNil(t, service)
		assert.False(t, service.IsInitialized())
		assert.Error(t, service.InitializationError())
		assert.NoError(t, service.Shutdown(t.Context()))
	})
}

func TestService_ExporterHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Run("Should report unavailable when disabled", func(t *testing.T) {
		service, err := NewMonitoringService(t.Context(), DefaultConfig())
		require.NoError(t, err)
		w := httptest.NewRecorder()
		service.ExporterHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
	t.Run("Should expose HTTP and system metrics", func(t *testing.T) {
		ResetSystemMetricsForTesting()
		service, err := NewMonitoringService(t.Context(), &Config{Enabled: true, Path: "/metrics"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = service.Shutdown(t.Context()) })
		router := gin.New()
		router.Use(service.GinMiddleware(t.Context()))
		router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
		router.GET(service.Path(), gin.WrapH(service.ExporterHandler()))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "repcoach_uptime_seconds")
		assert.Contains(t, body, "repcoach_http_requests_total")
	})
}
