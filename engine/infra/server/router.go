package server

import (
	"github.com/gin-gonic/gin"
	coachrouter "github.com/repcoach/repcoach/engine/coach/router"
	"github.com/repcoach/repcoach/engine/infra/server/appstate"
	"github.com/repcoach/repcoach/engine/infra/server/middleware/auth"
	lgmiddleware "github.com/repcoach/repcoach/engine/infra/server/middleware/logger"
	"github.com/repcoach/repcoach/engine/infra/server/middleware/ratelimit"
	"github.com/repcoach/repcoach/engine/infra/server/middleware/size"
	"github.com/repcoach/repcoach/engine/infra/server/routes"
	"github.com/repcoach/repcoach/pkg/config"
	"github.com/repcoach/repcoach/pkg/logger"
)

func convertRateLimitConfig(cfg *config.Config, monitoringPath string) *ratelimit.Config {
	return ratelimit.FromAppConfig(&cfg.RateLimit,
		routes.HealthVersioned(),
		monitoringPath,
	)
}

func (s *Server) buildRouter() error {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(lgmiddleware.Middleware(s.ctx))
	authManager := auth.NewManager(s.cfg.Server.UserHeader, s.cfg.Server.EmailHeader)
	r.Use(authManager.Middleware())
	if err := s.useRateLimit(r); err != nil {
		return err
	}
	mon := s.deps.Monitoring
	if mon.IsInitialized() {
		r.Use(mon.GinMiddleware(s.ctx))
	}
	r.Use(size.BodySizeLimiter(size.DefaultBodyLimit))
	r.Use(appstate.StateMiddleware(s.deps.State))
	if mon.IsInitialized() {
		r.GET(mon.Path(), gin.WrapH(mon.ExporterHandler()))
	}
	registerHealth(r, s)
	coachrouter.Register(r.Group(routes.Base()), authManager.RequireAuth())
	s.router = r
	return nil
}

// useRateLimit installs the per-user limiter. A zero limit disables it.
func (s *Server) useRateLimit(r *gin.Engine) error {
	if s.cfg.RateLimit.Limit <= 0 {
		return nil
	}
	log := logger.FromContext(s.ctx)
	rlConfig := convertRateLimitConfig(s.cfg, s.deps.Monitoring.Path())
	var (
		manager *ratelimit.Manager
		err     error
	)
	if s.deps.Monitoring.IsInitialized() {
		manager, err = ratelimit.NewManagerWithMetrics(s.ctx, rlConfig, s.deps.Redis, auth.UserKey, s.deps.Monitoring.Meter())
	} else {
		manager, err = ratelimit.NewManager(rlConfig, s.deps.Redis, auth.UserKey)
	}
	if err != nil {
		return err
	}
	r.Use(manager.Middleware())
	log.Info("Rate limiter initialized",
		"driver", manager.Driver(),
		"limit", rlConfig.Rate.Limit,
		"period", rlConfig.Rate.Period,
	)
	return nil
}
