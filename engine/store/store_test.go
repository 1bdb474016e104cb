package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeExerciseName(t *testing.T) {
	t.Run("Should lowercase trim and join words with underscores", func(t *testing.T) {
		assert.Equal(t, "barbell_back_squat", NormalizeExerciseName("  Barbell  Back\tSquat "))
		assert.Equal(t, "", NormalizeExerciseName("   "))
	})

	t.Run("Should dedupe names by normalized key", func(t *testing.T) {
		got := NormalizeNames([]string{"Push Up", "push  up", "", "Plank"})
		assert.Equal(t, []string{"push_up", "plank"}, got)
	})
}

func TestClampAuditLimit(t *testing.T) {
	t.Run("Should clamp into the allowed window", func(t *testing.T) {
		assert.Equal(t, 1, ClampAuditLimit(0))
		assert.Equal(t, 1, ClampAuditLimit(-5))
		assert.Equal(t, 42, ClampAuditLimit(42))
		assert.Equal(t, MaxAuditLimit, ClampAuditLimit(10_000))
	})
}
