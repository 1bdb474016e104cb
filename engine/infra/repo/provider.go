package repo

import (
	"context"
	"fmt"

	"github.com/repcoach/repcoach/engine/infra/postgres"
	"github.com/repcoach/repcoach/engine/infra/sqlite"
	"github.com/repcoach/repcoach/engine/store"
	"github.com/repcoach/repcoach/pkg/config"
	"github.com/repcoach/repcoach/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// NewStore opens the store for the configured driver. When AutoMigrate is
// set, pending migrations run before the store is returned.
func NewStore(ctx context.Context, cfg *config.DatabaseConfig) (store.Store, error) {
	log := logger.FromContext(ctx)
	switch cfg.Driver {
	case DriverPostgres:
		pgCfg := postgres.ConfigFromApp(cfg)
		if cfg.AutoMigrate {
			if err := postgres.ApplyMigrationsWithLock(ctx, pgCfg.DSN()); err != nil {
				return nil, fmt.Errorf("failed to apply postgres migrations: %w", err)
			}
		}
		st, err := postgres.NewStore(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		log.Info("Store initialized", "store_driver", DriverPostgres)
		return st, nil
	case DriverSQLite, "":
		st, err := sqlite.NewStore(ctx, sqlite.ConfigFromApp(cfg))
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := st.Migrate(ctx); err != nil {
				_ = st.Close(ctx)
				return nil, fmt.Errorf("failed to apply sqlite migrations: %w", err)
			}
		}
		log.Info("Store initialized", "store_driver", DriverSQLite, "path", cfg.Path)
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate applies pending migrations without keeping a store open.
func Migrate(ctx context.Context, cfg *config.DatabaseConfig) error {
	switch cfg.Driver {
	case DriverPostgres:
		return postgres.ApplyMigrationsWithLock(ctx, postgres.ConfigFromApp(cfg).DSN())
	case DriverSQLite, "":
		return sqlite.ApplyMigrations(ctx, cfg.Path)
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
