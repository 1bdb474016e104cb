package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/repcoach/repcoach/engine/core"
	"github.com/repcoach/repcoach/engine/store"
)

type auditRow struct {
	ID              string    `db:"id"`
	Source          string    `db:"source"`
	RequestPayload  []byte    `db:"request_payload"`
	ResponsePayload []byte    `db:"response_payload"`
	ErrorMessage    *string   `db:"error_message"`
	CreatedAt       time.Time `db:"created_at"`
}

// AuditRepo implements store.AuditRepository over ai_request_logs.
type AuditRepo struct {
	db DB
}

func NewAuditRepo(db DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Record(ctx context.Context, entry *store.AuditEntry) error {
	if entry.UserID == "" {
		return store.ErrUserRequired
	}
	if entry.ID == "" {
		entry.ID = core.MustNewID().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	request := []byte(entry.RequestPayload)
	if len(request) == 0 {
		request = []byte("{}")
	}
	var response []byte
	if len(entry.ResponsePayload) > 0 {
		response = entry.ResponsePayload
	}
	sql, args, err := squirrel.Insert("ai_request_logs").
		Columns("id", "user_id", "source", "request_payload", "response_payload", "error_message", "created_at").
		Values(entry.ID, entry.UserID, entry.Source, request, response, entry.ErrorMessage, entry.CreatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepo) List(ctx context.Context, userID string, limit int) ([]*store.AuditEntry, error) {
	sql, args, err := squirrel.Select("id", "source", "request_payload", "response_payload", "error_message", "created_at").
		From("ai_request_logs").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(store.ClampAuditLimit(limit))).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var rows []*auditRow
	if err := pgxscan.Select(ctx, r.db, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("scanning audit entries: %w", err)
	}
	out := make([]*store.AuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, &store.AuditEntry{
			ID:              row.ID,
			UserID:          userID,
			Source:          row.Source,
			RequestPayload:  row.RequestPayload,
			ResponsePayload: row.ResponsePayload,
			ErrorMessage:    row.ErrorMessage,
			CreatedAt:       row.CreatedAt,
		})
	}
	return out, nil
}
