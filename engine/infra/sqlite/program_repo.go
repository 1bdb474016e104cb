package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
	"github.com/repcoach/repcoach/engine/program"
	"github.com/repcoach/repcoach/engine/store"
)

var programColumns = []string{
	"id", "user_id", "current_version_id", "is_paused", "name", "description",
	"start_date", "schedule", "workouts", "created_at", "updated_at",
}

type programRow struct {
	ID               string         `db:"id"`
	UserID           string         `db:"user_id"`
	CurrentVersionID sql.NullString `db:"current_version_id"`
	IsPaused         bool           `db:"is_paused"`
	Name             string         `db:"name"`
	Description      string         `db:"description"`
	StartDate        string         `db:"start_date"`
	Schedule         string         `db:"schedule"`
	Workouts         string         `db:"workouts"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r *programRow) toProgram() (*program.Program, error) {
	start, err := program.ParseDate(r.StartDate)
	if err != nil {
		return nil, fmt.Errorf("decoding start date: %w", err)
	}
	p := &program.Program{
		ID:               r.ID,
		UserID:           r.UserID,
		CurrentVersionID: r.CurrentVersionID.String,
		IsPaused:         r.IsPaused,
		Name:             r.Name,
		Description:      r.Description,
		StartDate:        start,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(r.Schedule), &p.Schedule); err != nil {
		return nil, fmt.Errorf("decoding schedule: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Workouts), &p.Workouts); err != nil {
		return nil, fmt.Errorf("decoding workouts: %w", err)
	}
	return p, nil
}

// ProgramRepo implements store.ProgramRepository on SQLite.
type ProgramRepo struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

func NewProgramRepo(db *sql.DB) *ProgramRepo {
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
	err = withTransaction(ctx, r.db, func(tx *sql.Tx) error {
		q, args, err := psql.Insert("programs").
			Columns("id", "user_id", "is_paused", "name", "description", "start_date",
				"schedule", "workouts", "created_at", "updated_at").
			Values(created.ID, userID, created.IsPaused, created.Name, created.Description,
				created.StartDate.String(), schedule, workouts, now, now).
			ToSql()
		if err != nil {
			return fmt.Errorf("sqlite: build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("sqlite: insert program: %w", err)
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
	q, args, err := psql.Select(programColumns...).
		From("programs").
		Where(squirrel.Eq{"id": programID}).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build query: %w", err)
	}
	var row programRow
	if err := sqlscan.Get(ctx, r.db, &row, q, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, store.ErrProgramNotFound
		}
		return nil, fmt.Errorf("sqlite: get program: %w", err)
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
	err = withTransaction(ctx, r.db, func(tx *sql.Tx) error {
		q, args, err := psql.Update("programs").
			Set("name", updated.Name).
			Set("description", updated.Description).
			Set("start_date", updated.StartDate.String()).
			Set("is_paused", updated.IsPaused).
			Set("schedule", schedule).
			Set("workouts", workouts).
			Set("updated_at", updated.UpdatedAt).
			Where(squirrel.Eq{"id": updated.ID}).
			Where(squirrel.Eq{"user_id": userID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("sqlite: build update: %w", err)
		}
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("sqlite: update program: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("sqlite: rows affected: %w", err)
		} else if n == 0 {
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
	q, args, err := psql.Select("current_version_id").
		From("programs").
		Where(squirrel.Eq{"id": programID}).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("sqlite: build query: %w", err)
	}
	var versionID sql.NullString
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&versionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrProgramNotFound
		}
		return "", fmt.Errorf("sqlite: current version: %w", err)
	}
	return versionID.String, nil
}

type versionRow struct {
	ID            string    `db:"id"`
	ProgramID     string    `db:"program_id"`
	VersionNumber int       `db:"version_number"`
	Snapshot      string    `db:"snapshot"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r *ProgramRepo) GetVersion(ctx context.Context, versionID string) (*store.ProgramVersion, error) {
	q, args, err := psql.Select("id", "program_id", "version_number", "snapshot", "created_at").
		From("program_versions").
		Where(squirrel.Eq{"id": versionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build query: %w", err)
	}
	var row versionRow
	if err := sqlscan.Get(ctx, r.db, &row, q, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, store.ErrVersionNotFound
		}
		return nil, fmt.Errorf("sqlite: get version: %w", err)
	}
	var snapshot program.Program
	if err := json.Unmarshal([]byte(row.Snapshot), &snapshot); err != nil {
		return nil, fmt.Errorf("sqlite: decode version snapshot: %w", err)
	}
	return &store.ProgramVersion{
		ID:            row.ID,
		ProgramID:     row.ProgramID,
		VersionNumber: row.VersionNumber,
		Program:       &snapshot,
		CreatedAt:     row.CreatedAt.UTC(),
	}, nil
}

func (r *ProgramRepo) writeVersion(ctx context.Context, tx *sql.Tx, p *program.Program) (string, error) {
	q, args, err := psql.Select("COALESCE(MAX(version_number), 0) + 1").
		From("program_versions").
		Where(squirrel.Eq{"program_id": p.ID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("sqlite: build version query: %w", err)
	}
	var next int
	if err := tx.QueryRowContext(ctx, q, args...).Scan(&next); err != nil {
		return "", fmt.Errorf("sqlite: next version number: %w", err)
	}
	versionID := r.newID()
	snapshot := *p
	snapshot.CurrentVersionID = versionID
	body, err := json.Marshal(&snapshot)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode version snapshot: %w", err)
	}
	q, args, err = psql.Insert("program_versions").
		Columns("id", "program_id", "version_number", "snapshot", "created_at").
		Values(versionID, p.ID, next, string(body), p.UpdatedAt).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("sqlite: build version insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return "", fmt.Errorf("sqlite: insert version: %w", err)
	}
	q, args, err = psql.Update("programs").
		Set("current_version_id", versionID).
		Where(squirrel.Eq{"id": p.ID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("sqlite: build version pointer update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return "", fmt.Errorf("sqlite: update current version: %w", err)
	}
	return versionID, nil
}

func encodeProgramBody(p *program.Program) (string, string, error) {
	schedule, err := json.Marshal(p.Schedule)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encode schedule: %w", err)
	}
	workouts, err := json.Marshal(p.Workouts)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encode workouts: %w", err)
	}
	return string(schedule), string(workouts), nil
}
