package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/repcoach/repcoach/engine/program"
	"github.com/repcoach/repcoach/engine/store"
)

var programColumns = []string{
	"id", "user_id", "current_version_id", "is_paused", "name", "description",
	"start_date", "schedule", "workouts", "created_at", "updated_at",
}

type programRow struct {
	ID               string    `db:"id"`
	UserID           string    `db:"user_id"`
	CurrentVersionID *string   `db:"current_version_id"`
	IsPaused         bool      `db:"is_paused"`
	Name             string    `db:"name"`
	Description      string    `db:"description"`
	StartDate        time.Time `db:"start_date"`
	Schedule         []byte    `db:"schedule"`
	Workouts         []byte    `db:"workouts"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r *programRow) toProgram() (*program.Program, error) {
	p := &program.Program{
		ID:          r.ID,
		UserID:      r.UserID,
		IsPaused:    r.IsPaused,
		Name:        r.Name,
		Description: r.Description,
		StartDate:   program.NewDate(r.StartDate.Year(), r.StartDate.Month(), r.StartDate.Day()),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.CurrentVersionID != nil {
		p.CurrentVersionID = *r.CurrentVersionID
	}
	if err := json.Unmarshal(r.Schedule, &p.Schedule); err != nil {
		return nil, fmt.Errorf("decoding schedule: %w", err)
	}
	if err := json.Unmarshal(r.Workouts, &p.Workouts); err != nil {
		return nil, fmt.Errorf("decoding workouts: %w", err)
	}
	return p, nil
}

// ProgramRepo implements store.ProgramRepository.
type ProgramRepo struct {
	db    DB
	now   func() time.Time
	newID func() string
}

func NewProgramRepo(db DB) *ProgramRepo {
	return &ProgramRepo{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

func (r *ProgramRepo) Create(ctx context.Context, userID string, p *program.Program) (*program.Program, error) {
	if userID == "" {
		return nil, store.ErrUserRequired
	}
	created := *p
	created.ID = r.newID()
	created.UserID = userID
	now := r.now()
	created.CreatedAt = now
	created.UpdatedAt = now
	schedule, workouts, err := encodeProgramBody(&created)
	if err != nil {
		return nil, err
	}
	err = withTransaction(ctx, r.db, func(tx pgx.Tx) error {
		sql, args, err := squirrel.Insert("programs").
			Columns("id", "user_id", "is_paused", "name", "description", "start_date",
				"schedule", "workouts", "created_at", "updated_at").
			Values(created.ID, userID, created.IsPaused, created.Name, created.Description,
				created.StartDate.Time, schedule, workouts, now, now).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("building insert: %w", err)
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return fmt.Errorf("insert program: unknown user %q: %w", userID, err)
			}
			return fmt.Errorf("insert program: %w", err)
		}
		versionID, err := r.writeVersion(ctx, tx, &created)
		if err != nil {
			return err
		}
		created.CurrentVersionID = versionID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *ProgramRepo) Get(ctx context.Context, userID, programID string) (*program.Program, error) {
	sql, args, err := squirrel.Select(programColumns...).
		From("programs").
		Where(squirrel.Eq{"id": programID}).
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var row programRow
	if err := pgxscan.Get(ctx, r.db, &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrProgramNotFound
		}
		return nil, fmt.Errorf("scanning program: %w", err)
	}
	return row.toProgram()
}

func (r *ProgramRepo) Update(ctx context.Context, userID string, p *program.Program) (*program.Program, error) {
	updated := *p
	updated.UserID = userID
	updated.UpdatedAt = r.now()
	schedule, workouts, err := encodeProgramBody(&updated)
	if err != nil {
		return nil, err
	}
	err = withTransaction(ctx, r.db, func(tx pgx.Tx) error {
		sql, args, err := squirrel.Update("programs").
			Set("name", updated.Name).
			Set("description", updated.Description).
			Set("start_date", updated.StartDate.Time).
			Set("is_paused", updated.IsPaused).
			Set("schedule", schedule).
			Set("workouts", workouts).
			Set("updated_at", updated.UpdatedAt).
			Where(squirrel.Eq{"id": updated.ID}).
			Where(squirrel.Eq{"user_id": userID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("building update: %w", err)
		}
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("update program: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return store.ErrProgramNotFound
		}
		versionID, err := r.writeVersion(ctx, tx, &updated)
		if err != nil {
			return err
		}
		updated.CurrentVersionID = versionID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *ProgramRepo) CurrentVersionID(ctx context.Context, userID, programID string) (string, error) {
	sql, args, err := squirrel.Select("current_version_id").
		From("programs").
		Where(squirrel.Eq{"id": programID}).
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("building query: %w", err)
	}
	var versionID *string
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&versionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrProgramNotFound
		}
		return "", fmt.Errorf("scanning current version: %w", err)
	}
	if versionID == nil {
		return "", nil
	}
	return *versionID, nil
}

type versionRow struct {
	ID            string    `db:"id"`
	ProgramID     string    `db:"program_id"`
	VersionNumber int       `db:"version_number"`
	Snapshot      []byte    `db:"snapshot"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r *ProgramRepo) GetVersion(ctx context.Context, versionID string) (*store.ProgramVersion, error) {
	sql, args, err := squirrel.Select("id", "program_id", "version_number", "snapshot", "created_at").
		From("program_versions").
		Where(squirrel.Eq{"id": versionID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var row versionRow
	if err := pgxscan.Get(ctx, r.db, &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrVersionNotFound
		}
		return nil, fmt.Errorf("scanning version: %w", err)
	}
	var snapshot program.Program
	if err := json.Unmarshal(row.Snapshot, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding version snapshot: %w", err)
	}
	return &store.ProgramVersion{
		ID:            row.ID,
		ProgramID:     row.ProgramID,
		VersionNumber: row.VersionNumber,
		Program:       &snapshot,
		CreatedAt:     row.CreatedAt,
	}, nil
}

// writeVersion appends the next snapshot and points the program at it.
func (r *ProgramRepo) writeVersion(ctx context.Context, tx pgx.Tx, p *program.Program) (string, error) {
	sql, args, err := squirrel.Select("COALESCE(MAX(version_number), 0) + 1").
		From("program_versions").
		Where(squirrel.Eq{"program_id": p.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("building version query: %w", err)
	}
	var next int
	if err := tx.QueryRow(ctx, sql, args...).Scan(&next); err != nil {
		return "", fmt.Errorf("next version number: %w", err)
	}
	versionID := r.newID()
	snapshot := *p
	snapshot.CurrentVersionID = versionID
	body, err := json.Marshal(&snapshot)
	if err != nil {
		return "", fmt.Errorf("encoding version snapshot: %w", err)
	}
	sql, args, err = squirrel.Insert("program_versions").
		Columns("id", "program_id", "version_number", "snapshot", "created_at").
		Values(versionID, p.ID, next, body, p.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("building version insert: %w", err)
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return "", fmt.Errorf("insert program version: %w", err)
	}
	sql, args, err = squirrel.Update("programs").
		Set("current_version_id", versionID).
		Where(squirrel.Eq{"id": p.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("building version pointer update: %w", err)
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return "", fmt.Errorf("update current version: %w", err)
	}
	return versionID, nil
}

func encodeProgramBody(p *program.Program) ([]byte, []byte, error) {
	schedule, err := json.Marshal(p.Schedule)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding schedule: %w", err)
	}
	workouts, err := json.Marshal(p.Workouts)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding workouts: %w", err)
	}
	return schedule, workouts, nil
}
