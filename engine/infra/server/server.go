package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/repcoach/repcoach/engine/infra/monitoring"
	"github.com/repcoach/repcoach/engine/infra/server/appstate"
	"github.com/repcoach/repcoach/pkg/config"
	"github.com/repcoach/repcoach/pkg/logger"
)

const (
	statusHealthy         = "healthy"
	statusNotReady        = "not_ready"
	serverShutdownTimeout = 10 * time.Second
	httpReadTimeout       = 15 * time.Second
	httpIdleTimeout       = 60 * time.Second
	healthCheckTimeout    = 2 * time.Second
)

// Deps are the long-lived components the HTTP layer serves.
type Deps struct {
	State      *appstate.State
	Monitoring *monitoring.Service
	// Redis backs the rate limiter when set. Nil falls back to process memory.
	Redis redis.UniversalClient
}

type Server struct {
	ctx        context.Context
	cfg        *config.Config
	deps       Deps
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(ctx context.Context, cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server configuration is required")
	}
	if deps.State == nil {
		return nil, errors.New("application state is required")
	}
	if deps.Monitoring == nil {
		deps.Monitoring = monitoring.NewMonitoringServiceWithFallback(ctx, monitoring.DefaultConfig())
	}
	s := &Server{ctx: ctx, cfg: cfg, deps: deps}
	if err := s.buildRouter(); err != nil {
		return nil, fmt.Errorf("failed to build router: %w", err)
	}
	return s, nil
}

// Handler exposes the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	s.httpServer = s.createHTTPServer()
	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("http://%s", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Debug("Shutdown requested, draining HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("http server failed: %w", err)
	}
	log.Info("Server shutdown completed successfully")
	return nil
}

// createHTTPServer leaves headroom above the model timeout so streamed
// replies are not cut off mid-turn.
func (s *Server) createHTTPServer() *http.Server {
	writeTimeout := s.cfg.Server.Timeout
	if llm := s.cfg.LLM.Timeout; llm > 0 && writeTimeout < llm+httpReadTimeout {
		writeTimeout = llm + httpReadTimeout
	}
	return &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadTimeout:       httpReadTimeout,
		ReadHeaderTimeout: httpReadTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       httpIdleTimeout,
	}
}
