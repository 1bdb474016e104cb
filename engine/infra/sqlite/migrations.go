package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/repcoach/repcoach/engine/core"
	"github.com/repcoach/repcoach/pkg/logger"
	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"
)

const (
	memoryPath         = ":memory:"
	defaultBusyTimeout = 5 * time.Second
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var gooseInitMu sync.Mutex

// ApplyMigrations executes all embedded SQLite migrations against the database file.
func ApplyMigrations(ctx context.Context, dbPath string) error {
	cfg := &Config{Path: dbPath}
	dsn, _, err := buildDSN(cfg)
	if err != nil {
		return fmt.Errorf("sqlite: prepare migrations dsn: %w", err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("sqlite: open database for migrations: %w", err)
	}
	defer db.Close()
	return migrate(ctx, db, cfg)
}

func migrate(ctx context.Context, db *sql.DB, cfg *Config) error {
	if err := applyBusyTimeout(ctx, db, cfg); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}

	gooseInitMu.Lock()
	defer func() {
		goose.SetBaseFS(nil)
		gooseInitMu.Unlock()
	}()
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("sqlite: set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("sqlite: apply migrations: %w", err)
	}
	logger.FromContext(ctx).Info("Migrations applied", "store_driver", "sqlite", "path", cfg.Path)
	return nil
}

// buildDSN returns the driver DSN and whether the database lives in memory.
func buildDSN(cfg *Config) (string, bool, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", false, fmt.Errorf("sqlite: path is required")
	}
	if path == memoryPath {
		name := "memdb-" + core.MustNewID().String()
		return "file:" + name + "?mode=memory&cache=shared&_pragma=foreign_keys(ON)&_time_format=sqlite", true, nil
	}
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(ON)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_time_format", "sqlite")
	return "file:" + path + "?" + q.Encode(), false, nil
}

func applyBusyTimeout(ctx context.Context, db *sql.DB, cfg *Config) error {
	timeout := cfg.BusyTimeout
	if timeout <= 0 {
		timeout = defaultBusyTimeout
	}
	pragma := fmt.Sprintf("PRAGMA busy_timeout = %d", timeout.Milliseconds())
	if _, err := db.ExecContext(ctx, pragma); err != nil {
		return fmt.Errorf("sqlite: set busy timeout: %w", err)
	}
	return nil
}
