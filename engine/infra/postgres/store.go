package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/repcoach/repcoach/engine/store"
	"github.com/repcoach/repcoach/pkg/logger"
)

const (
	defaultMaxConns           = 20
	defaultHealthCheckPeriod  = 30 * time.Second
	defaultConnectTimeout     = 5 * time.Second
	defaultPingTimeout        = 3 * time.Second
	defaultHealthCheckTimeout = 1 * time.Second
)

// ErrSchemaMissing is returned by HealthCheck when the database answers but
// the program tables have not been migrated.
var ErrSchemaMissing = errors.New("postgres: programs table is missing; run repcoach migrate")

const schemaCheckQuery = `SELECT to_regclass('public.programs') IS NOT NULL`

// Store serves programs, versions, exercise descriptions, audit entries and
// users from one pgx pool.
type Store struct {
	db                 DB
	closePool          func()
	metrics            *poolMetrics
	healthCheckTimeout time.Duration
	programs           *ProgramRepo
	descriptions       *DescriptionRepo
	audit              *AuditRepo
	users              *UserRepo
}

var _ store.Store = (*Store)(nil)

// NewStore opens the pool and pings it before returning.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres: config is required")
	}
	poolCfg, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	applyPoolSettings(cfg, poolCfg)
	metricsTracker, mErr := configurePostgresMetrics(cfg, poolCfg)
	if mErr != nil {
		logger.FromContext(ctx).Warn("Postgres metrics not initialized; continuing without metrics", "error", mErr)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, orDefault(cfg.PingTimeout, defaultPingTimeout))
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		if metricsTracker != nil {
			metricsTracker.unregister()
		}
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if metricsTracker != nil {
		metricsTracker.attach(pool)
	}
	logger.FromContext(ctx).Info("Store initialized",
		"store_driver", "postgres",
		"host", cfg.Host,
		"db_name", cfg.DBName,
		"max_conns", poolCfg.MaxConns,
		"min_conns", poolCfg.MinConns,
	)
	st := newStore(pool, orDefault(cfg.HealthCheckTimeout, defaultHealthCheckTimeout))
	st.closePool = pool.Close
	st.metrics = metricsTracker
	return st, nil
}

func newStore(db DB, healthCheckTimeout time.Duration) *Store {
	return &Store{
		db:                 db,
		healthCheckTimeout: healthCheckTimeout,
		programs:           NewProgramRepo(db),
		descriptions:       NewDescriptionRepo(db),
		audit:              NewAuditRepo(db),
		users:              NewUserRepo(db),
	}
}

func (s *Store) Programs() store.ProgramRepository { return s.programs }
func (s *Store) Descriptions() store.ExerciseDescriptionRepository { return s.descriptions }
func (s *Store) Audit() store.AuditRepository { return s.audit }
func (s *Store) Users() store.UserRepository { return s.users }

// Close shuts down the connection pool.
func (s *Store) Close(ctx context.Context) error {
	if s.metrics != nil {
		s.metrics.unregister()
	}
	if s.closePool != nil {
		s.closePool()
	}
	logger.FromContext(ctx).Info("Postgres store closed")
	return nil
}

// HealthCheck round-trips to the database and confirms the migrated schema
// is in place.
func (s *Store) HealthCheck(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, orDefault(s.healthCheckTimeout, defaultHealthCheckTimeout))
	defer cancel()
	var migrated bool
	if err := s.db.QueryRow(hctx, schemaCheckQuery).Scan(&migrated); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	if !migrated {
		return ErrSchemaMissing
	}
	return nil
}

// applyPoolSettings copies sizing, lifetimes and timeouts onto poolCfg.
// MaxIdleConns becomes the pool's minimum and never exceeds the maximum.
func applyPoolSettings(cfg *Config, poolCfg *pgxpool.Config) {
	maxConns := int32(defaultMaxConns)
	if cfg.MaxOpenConns > 0 {
		maxConns = int32(min(cfg.MaxOpenConns, math.MaxInt32))
	}
	poolCfg.MaxConns = maxConns
	poolCfg.MinConns = int32(min(max(cfg.MaxIdleConns, 0), int(maxConns)))
	poolCfg.HealthCheckPeriod = orDefault(cfg.HealthCheckPeriod, defaultHealthCheckPeriod)
	poolCfg.ConnConfig.ConnectTimeout = orDefault(cfg.ConnectTimeout, defaultConnectTimeout)
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
}

func orDefault(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
