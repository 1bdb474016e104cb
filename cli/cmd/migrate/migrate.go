package migrate

import (
	"fmt"

	"github.com/repcoach/repcoach/engine/infra/repo"
	"github.com/repcoach/repcoach/pkg/config"
	"github.com/repcoach/repcoach/pkg/logger"
	"github.com/spf13/cobra"
)

// NewMigrateCommand applies pending schema migrations and exits.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			log := logger.FromContext(ctx)
			log.Info("Applying migrations", "store_driver", cfg.Database.Driver)
			if err := repo.Migrate(ctx, &cfg.Database); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			log.Info("Migrations applied")
			return nil
		},
	}
}
