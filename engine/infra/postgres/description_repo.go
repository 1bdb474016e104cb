package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/repcoach/repcoach/engine/store"
)

var descriptionColumns = []string{"normalized_name", "exercise_name", "description", "equipment", "created_at"}

type descriptionRow struct {
	NormalizedName string    `db:"normalized_name"`
	ExerciseName   string    `db:"exercise_name"`
	Description    string    `db:"description"`
	Equipment      []byte    `db:"equipment"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r *descriptionRow) toDescription() *store.ExerciseDescription {
	d := &store.ExerciseDescription{
		NormalizedName: r.NormalizedName,
		ExerciseName:   r.ExerciseName,
		Description:    r.Description,
		CreatedAt:      r.CreatedAt,
	}
	if len(r.Equipment) > 0 {
		_ = json.Unmarshal(r.Equipment, &d.Equipment)
	}
	return d
}

// DescriptionRepo implements store.ExerciseDescriptionRepository.
type DescriptionRepo struct {
	db DB
}

func NewDescriptionRepo(db DB) *DescriptionRepo {
	return &DescriptionRepo{db: db}
}

func (r *DescriptionRepo) GetByNames(ctx context.Context, normalized []string) ([]*store.ExerciseDescription, error) {
	if len(normalized) == 0 {
		return nil, nil
	}
	sql, args, err := squirrel.Select(descriptionColumns...).
		From("exercise_descriptions").
		Where(squirrel.Eq{"normalized_name": normalized}).
		OrderBy("normalized_name").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var rows []*descriptionRow
	if err := pgxscan.Select(ctx, r.db, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("scanning descriptions: %w", err)
	}
	out := make([]*store.ExerciseDescription, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDescription())
	}
	return out, nil
}

func (r *DescriptionRepo) Get(ctx context.Context, normalized string) (*store.ExerciseDescription, error) {
	sql, args, err := squirrel.Select(descriptionColumns...).
		From("exercise_descriptions").
		Where(squirrel.Eq{"normalized_name": normalized}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var row descriptionRow
	if err := pgxscan.Get(ctx, r.db, &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrDescriptionNotFound
		}
		return nil, fmt.Errorf("scanning description: %w", err)
	}
	return row.toDescription(), nil
}

// Save upserts by normalized name.
func (r *DescriptionRepo) Save(ctx context.Context, desc *store.ExerciseDescription) error {
	equipment, err := json.Marshal(nonNilStrings(desc.Equipment))
	if err != nil {
		return fmt.Errorf("encoding equipment: %w", err)
	}
	now := time.Now().UTC()
	sql, args, err := squirrel.Insert("exercise_descriptions").
		Columns("normalized_name", "exercise_name", "description", "equipment", "created_at", "updated_at").
		Values(desc.NormalizedName, desc.ExerciseName, desc.Description, equipment, now, now).
		Suffix("ON CONFLICT (normalized_name) DO UPDATE SET " +
			"exercise_name = EXCLUDED.exercise_name, description = EXCLUDED.description, " +
			"equipment = EXCLUDED.equipment, updated_at = EXCLUDED.updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert description: %w", err)
	}
	return nil
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
