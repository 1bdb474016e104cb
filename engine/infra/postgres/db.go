package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/repcoach/repcoach/pkg/logger"
)

// DB is the subset of pgxpool.Pool used by the repositories. pgxmock pools
// satisfy it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

func withTransaction(ctx context.Context, db DB, fn func(pgx.Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	log := logger.FromContext(ctx)
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error("Failed to rollback transaction", "error", rbErr)
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error("Failed to rollback transaction", "error", rbErr)
			}
		} else if cErr := tx.Commit(ctx); cErr != nil {
			log.Error("Failed to commit transaction", "error", cErr)
			err = fmt.Errorf("commit transaction: %w", cErr)
		}
	}()
	return fn(tx)
}
