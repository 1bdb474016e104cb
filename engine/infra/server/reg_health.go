package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/repcoach/repcoach/engine/core"
	"github.com/repcoach/repcoach/engine/infra/monitoring"
	"github.com/repcoach/repcoach/engine/infra/server/routes"
	"github.com/repcoach/repcoach/pkg/logger"
)

func registerHealth(r *gin.Engine, server *Server) {
	handler := CreateHealthHandler(server)
	r.GET("/healthz", handler)
	r.GET(routes.HealthVersioned(), handler)
}

// Health endpoint
//
//	@Summary      Get server health
//	@Description  Returns service health, build information and store status
//	@Tags         health
//	@Produce      json
//	@Success      200 {object} map[string]interface{} "Service is healthy"
//	@Failure      503 {object} map[string]interface{} "Store is unreachable"
//	@Router       /api/v0/health [get]
func CreateHealthHandler(server *Server) gin.HandlerFunc {
	version, commit, goVersion := monitoring.BuildInfo()
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		storeHealth, ready := buildStoreHealth(ctx, server)
		status := statusHealthy
		if !ready {
			status = statusNotReady
		}
		c.JSON(determineHealthStatusCode(ready), gin.H{
			"data": gin.H{
				"status":     status,
				"ready":      ready,
				"version":    version,
				"commit":     commit,
				"go_version": goVersion,
				"store":      storeHealth,
			},
			"message": "Success",
		})
	}
}

func buildStoreHealth(ctx context.Context, server *Server) (gin.H, bool) {
	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := server.deps.State.Store.HealthCheck(checkCtx); err != nil {
		logger.FromContext(ctx).Warn("Store health check failed", "error", core.RedactError(err))
		return gin.H{"healthy": false, "error": "store unreachable"}, false
	}
	return gin.H{"healthy": true}, true
}

func determineHealthStatusCode(ready bool) int {
	if !ready {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
