package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/repcoach/repcoach/engine/infra/server"
	"github.com/repcoach/repcoach/pkg/config"
	"github.com/repcoach/repcoach/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const productionEnvironment = "production"

// NewServeCommand creates the command that runs the HTTP API.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the coaching API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := config.FromContext(ctx)
	log := logger.FromContext(ctx)
	if cfg.Runtime.Environment == productionEnvironment {
		gin.SetMode(gin.ReleaseMode)
		logProductionWarnings(ctx, cfg)
	}
	deps, cleanup, err := server.SetupDependencies(ctx, cfg)
	defer cleanup()
	if err != nil {
		return err
	}
	srv, err := server.NewServer(ctx, cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Stopping server")
		return nil
	})
	return g.Wait()
}

func logProductionWarnings(ctx context.Context, cfg *config.Config) {
	log := logger.FromContext(ctx)
	if cfg.Database.Driver == "postgres" && cfg.Database.SSLMode == "disable" {
		log.Warn("Database SSL is disabled in production", "hint", "set database.ssl_mode=require")
	}
	if cfg.RateLimit.Limit == 0 {
		log.Warn("Rate limiting is disabled in production", "hint", "set ratelimit.limit")
	}
	if cfg.LLM.Provider == "mock" {
		log.Warn("Mock model provider configured in production")
	}
	if cfg.Audit.Enabled && len(cfg.Audit.AllowedEmails) > 0 {
		log.Info("Model audit log enabled", "allowed_users", len(cfg.Audit.AllowedEmails))
	}
}
