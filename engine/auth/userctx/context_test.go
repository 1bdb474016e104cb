package userctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContext(t *testing.T) {
	t.Run("Should round trip the user", func(t *testing.T) {
		ctx := WithUser(t.Context(), &User{ID: "u-1", Email: "a@b.c"})
		user, err := MustUserFromContext(ctx)
		require.NoError(t, err)
		assert.Equal(t, "u-1", user.ID)
	})

	t.Run("Should fail without a user", func(t *testing.T) {
		_, ok := UserFromContext(context.Background())
		assert.False(t, ok)
		_, err := MustUserFromContext(WithUser(t.Context(), &User{}))
		assert.Error(t, err)
	})
}
