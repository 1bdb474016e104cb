package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/repcoach/repcoach/engine/store"
	"github.com/repcoach/repcoach/pkg/logger"
)

const (
	defaultMaxOpenConns       = 4
	defaultHealthCheckTimeout = time.Second
)

// psql renders squirrel builders with sqlite placeholders.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// Store is the SQLite driver backed by database/sql.
type Store struct {
	db           *sql.DB
	cfg          *Config
	programs     *ProgramRepo
	descriptions *DescriptionRepo
	audit        *AuditRepo
	users        *UserRepo
}

var _ store.Store = (*Store)(nil)

// NewStore opens the database and verifies the connection. In-memory
// databases are private to the returned Store.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("sqlite: config is required")
	}
	dsn, inMemory, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	configurePool(db, cfg, inMemory)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if err := applyBusyTimeout(ctx, db, cfg); err != nil {
		db.Close()
		return nil, err
	}
	logger.FromContext(ctx).With(
		"store_driver", "sqlite",
		"path", cfg.Path,
		"in_memory", inMemory,
	).Info("Store initialized")
	return &Store{
		db:           db,
		cfg:          cfg,
		programs:     NewProgramRepo(db),
		descriptions: NewDescriptionRepo(db),
		audit:        NewAuditRepo(db),
		users:        NewUserRepo(db),
	}, nil
}

func configurePool(db *sql.DB, cfg *Config, inMemory bool) {
	maxOpen := defaultMaxOpenConns
	if cfg.MaxOpenConns > 0 {
		maxOpen = cfg.MaxOpenConns
	}
	if inMemory {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	if cfg.MaxIdleConns > 0 && !inMemory {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 && !inMemory {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// Migrate applies the embedded migrations on the store's own connection.
func (s *Store) Migrate(ctx context.Context) error { return migrate(ctx, s.db, s.cfg) }

func (s *Store) Programs() store.ProgramRepository { return s.programs }
func (s *Store) Descriptions() store.ExerciseDescriptionRepository { return s.descriptions }
func (s *Store) Audit() store.AuditRepository { return s.audit }
func (s *Store) Users() store.UserRepository { return s.users }

func (s *Store) HealthCheck(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, defaultHealthCheckTimeout)
	defer cancel()
	if err := s.db.PingContext(hctx); err != nil {
		return fmt.Errorf("sqlite: health check failed: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite: close: %w", err)
	}
	logger.FromContext(ctx).Info("SQLite store closed")
	return nil
}

func withTransaction(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}
	log := logger.FromContext(ctx)
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("Failed to rollback transaction", "error", rbErr)
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("Failed to rollback transaction", "error", rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("sqlite: commit transaction: %w", cErr)
		}
	}()
	return fn(tx)
}
