package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/repcoach/repcoach/engine/core"
	"github.com/repcoach/repcoach/engine/store"
)

var descriptionColumns = []string{"normalized_name", "exercise_name", "description", "equipment", "created_at"}

type descriptionRow struct {
	NormalizedName string    `db:"normalized_name"`
	ExerciseName   string    `db:"exercise_name"`
	Description    string    `db:"description"`
	Equipment      string    `db:"equipment"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r *descriptionRow) toDescription() *store.ExerciseDescription {
	d := &store.ExerciseDescription{
		NormalizedName: r.NormalizedName,
		ExerciseName:   r.ExerciseName,
		Description:    r.Description,
		CreatedAt:      r.CreatedAt.UTC(),
	}
	_ = json.Unmarshal([]byte(r.Equipment), &d.Equipment)
	return d
}

// DescriptionRepo implements store.ExerciseDescriptionRepository.
type DescriptionRepo struct{ db *sql.DB }

func NewDescriptionRepo(db *sql.DB) *DescriptionRepo { return &DescriptionRepo{db: db} }

func (r *DescriptionRepo) GetByNames(ctx context.Context, normalized []string) ([]*store.ExerciseDescription, error) {
	if len(normalized) == 0 {
		return nil, nil
	}
	q, args, err := psql.Select(descriptionColumns...).
		From("exercise_descriptions").
		Where(squirrel.Eq{"normalized_name": normalized}).
		OrderBy("normalized_name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build query: %w", err)
	}
	var rows []*descriptionRow
	if err := sqlscan.Select(ctx, r.db, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("sqlite: list descriptions: %w", err)
	}
	out := make([]*store.ExerciseDescription, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDescription())
	}
	return out, nil
}

func (r *DescriptionRepo) Get(ctx context.Context, normalized string) (*store.ExerciseDescription, error) {
	q, args, err := psql.Select(descriptionColumns...).
		From("exercise_descriptions").
		Where(squirrel.Eq{"normalized_name": normalized}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build query: %w", err)
	}
	var row descriptionRow
	if err := sqlscan.Get(ctx, r.db, &row, q, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, store.ErrDescriptionNotFound
		}
		return nil, fmt.Errorf("sqlite: get description: %w", err)
	}
	return row.toDescription(), nil
}

func (r *DescriptionRepo) Save(ctx context.Context, desc *store.ExerciseDescription) error {
	equipment := desc.Equipment
	if equipment == nil {
		equipment = []string{}
	}
	encoded, err := json.Marshal(equipment)
	if err != nil {
		return fmt.Errorf("sqlite: encode equipment: %w", err)
	}
	now := time.Now().UTC()
	q, args, err := psql.Insert("exercise_descriptions").
		Columns("normalized_name", "exercise_name", "description", "equipment", "created_at", "updated_at").
		Values(desc.NormalizedName, desc.ExerciseName, desc.Description, string(encoded), now, now).
		Suffix("ON CONFLICT (normalized_name) DO UPDATE SET " +
			"exercise_name = excluded.exercise_name, description = excluded.description, " +
			"equipment = excluded.equipment, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: build upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("sqlite: save description: %w", err)
	}
	return nil
}

type auditRow struct {
	ID              string         `db:"id"`
	Source          string         `db:"source"`
	RequestPayload  string         `db:"request_payload"`
	ResponsePayload sql.NullString `db:"response_payload"`
	ErrorMessage    sql.NullString `db:"error_message"`
	CreatedAt       time.Time      `db:"created_at"`
}

// AuditRepo implements store.AuditRepository.
type AuditRepo struct{ db *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

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
	request := string(entry.RequestPayload)
	if request == "" {
		request = "{}"
	}
	var response sql.NullString
	if len(entry.ResponsePayload) > 0 {
		response = sql.NullString{String: string(entry.ResponsePayload), Valid: true}
	}
	var errMsg sql.NullString
	if entry.ErrorMessage != nil {
		errMsg = sql.NullString{String: *entry.ErrorMessage, Valid: true}
	}
	q, args, err := psql.Insert("ai_request_logs").
		Columns("id", "user_id", "source", "request_payload", "response_payload", "error_message", "created_at").
		Values(entry.ID, entry.UserID, entry.Source, request, response, errMsg, entry.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("sqlite: record audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepo) List(ctx context.Context, userID string, limit int) ([]*store.AuditEntry, error) {
	q, args, err := psql.Select("id", "source", "request_payload", "response_payload", "error_message", "created_at").
		From("ai_request_logs").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(store.ClampAuditLimit(limit))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build query: %w", err)
	}
	var rows []*auditRow
	if err := sqlscan.Select(ctx, r.db, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("sqlite: list audit entries: %w", err)
	}
	out := make([]*store.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entry := &store.AuditEntry{
			ID:             row.ID,
			UserID:         userID,
			Source:         row.Source,
			RequestPayload: json.RawMessage(row.RequestPayload),
			CreatedAt:      row.CreatedAt.UTC(),
		}
		if row.ResponsePayload.Valid {
			entry.ResponsePayload = json.RawMessage(row.ResponsePayload.String)
		}
		if row.ErrorMessage.Valid {
			msg := row.ErrorMessage.String
			entry.ErrorMessage = &msg
		}
		out = append(out, entry)
	}
	return out, nil
}

// UserRepo implements store.UserRepository.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) EnsureUser(ctx context.Context, userID, email string) error {
	if userID == "" {
		return store.ErrUserRequired
	}
	var emailArg sql.NullString
	if email != "" {
		emailArg = sql.NullString{String: email, Valid: true}
	}
	q, args, err := psql.Insert("users").
		Columns("id", "email").
		Values(userID, emailArg).
		Suffix("ON CONFLICT (id) DO UPDATE SET email = COALESCE(excluded.email, users.email)").
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: build upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("sqlite: ensure user: %w", err)
	}
	return nil
}
