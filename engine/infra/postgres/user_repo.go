package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/repcoach/repcoach/engine/store"
)

// UserRepo implements store.UserRepository.
type UserRepo struct {
	db DB
}

func NewUserRepo(db DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) EnsureUser(ctx context.Context, userID, email string) error {
	if userID == "" {
		return store.ErrUserRequired
	}
	var emailArg *string
	if email != "" {
		emailArg = &email
	}
	sql, args, err := squirrel.Insert("users").
		Columns("id", "email").
		Values(userID, emailArg).
		Suffix("ON CONFLICT (id) DO UPDATE SET email = COALESCE(EXCLUDED.email, users.email)").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}
