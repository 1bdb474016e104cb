package core_test

import (
	"testing"

	"github.com/repcoach/repcoach/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID(t *testing.T) {
	t.Run("Should treat empty ID as zero", func(t *testing.T) {
		var id core.ID
		assert.True(t, id.IsZero())
		assert.False(t, core.ID("x").IsZero())
	})

	t.Run("Should generate unique parseable IDs", func(t *testing.T) {
		first := core.MustNewID()
		second := core.MustNewID()
		assert.NotEqual(t, first, second)

		parsed, err := core.ParseID(first.String())
		require.NoError(t, err)
		assert.Equal(t, first, parsed)
	})

	t.Run("Should reject empty and malformed input", func(t *testing.T) {
		_, err := core.ParseID("")
		assert.ErrorContains(t, err, "empty ID")

		_, err = core.ParseID("not-a-valid-ksuid")
		assert.ErrorContains(t, err, "invalid ID format")
	})
}
