package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repcoach/repcoach/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "deps.db")
	cfg.LLM.Provider = "mock"
	cfg.Monitoring.Enabled = false
	return cfg
}

func TestSetupDependencies(t *testing.T) {
	t.Run("Should wire a local-only stack", func(t *testing.T) {
		deps, cleanup, err := SetupDependencies(t.Context(), testConfig(t))
		require.NoError(t, err)
		t.Cleanup(cleanup)
		require.NotNil(t, deps.State)
		assert.Nil(t, deps.Redis)
		assert.False(t, deps.Monitoring.IsInitialized())
		require.NoError(t, deps.State.Store.HealthCheck(t.Context()))
	})
	t.Run("Should share redis with the rate limiter", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig(t)
		cfg.Redis.Addr = mr.Addr()
		cfg.RateLimit.Limit = 1
		deps, cleanup, err := SetupDependencies(t.Context(), cfg)
		require.NoError(t, err)
		t.Cleanup(cleanup)
		require.NotNil(t, deps.Redis)

		srv, err := NewServer(t.Context(), cfg, deps)
		require.NoError(t, err)
		for i, want := range []int{http.StatusForbidden, http.StatusTooManyRequests} {
			req := httptest.NewRequest(http.MethodGet, "/api/v0/debug/ai-requests", http.NoBody)
			req.Header.Set("X-User-ID", "user-1")
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)
			assert.Equal(t, want, w.Code, "request %d", i)
		}
		assert.NotEmpty(t, mr.Keys())
	})
	t.Run("Should fail on an unknown provider and still clean up", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.LLM.Provider = "unknown"
		_, cleanup, err := SetupDependencies(t.Context(), cfg)
		require.Error(t, err)
		assert.NotPanics(t, cleanup)
	})
}
