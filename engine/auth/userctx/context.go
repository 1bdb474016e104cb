// Package userctx stores the authenticated caller on context.Context. The
// server middleware injects it and the coaching layer reads it back.
package userctx

import (
	"context"
	"fmt"
	"strings"
)

// User is the authenticated caller resolved from request headers.
type User struct {
	ID    string
	Email string
}

type userKey struct{}

func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func UserFromContext(ctx context.Context) (*User, bool) {
	if ctx == nil {
		return nil, false
	}
	user, ok := ctx.Value(userKey{}).(*User)
	return user, ok && user != nil
}

// MustUserFromContext returns an error when no user is present.
func MustUserFromContext(ctx context.Context) (*User, error) {
	user, ok := UserFromContext(ctx)
	if !ok || strings.TrimSpace(user.ID) == "" {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}
