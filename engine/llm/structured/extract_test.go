package structured

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	t.Run("Should prefer a fenced json block", func(t *testing.T) {
		text := "Here you go {not this}\n```json\n{\"name\": \"A\"}\n```\nEnjoy!"
		out, err := Extract(text)
		require.NoError(t, err)
		assert.Equal(t, `{"name": "A"}`, out)
	})

	t.Run("Should accept an untagged fence", func(t *testing.T) {
		out, err := Extract("```\n{\"a\":1}\n```")
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, out)
	})

	t.Run("Should scan balanced braces and ignore braces in strings", func(t *testing.T) {
		text := `Sure! {"notes": "use } and { carefully", "nested": {"x": "\"}"}} trailing {junk`
		out, err := Extract(text)
		require.NoError(t, err)
		assert.Equal(t, `{"notes": "use } and { carefully", "nested": {"x": "\"}"}}`, out)
	})

	t.Run("Should fail without an object", func(t *testing.T) {
		_, err := Extract("no json here")
		assert.ErrorIs(t, err, ErrNoJSON)
	})

	t.Run("Should fail on unbalanced output", func(t *testing.T) {
		_, err := Extract(`prefix {"workouts": [{"name": "A"}`)
		assert.ErrorIs(t, err, ErrUnbalanced)
	})

	t.Run("Should fall back to scanning when the fence holds no object", func(t *testing.T) {
		out, err := Extract("```\nplain\n``` then {\"ok\":true}")
		require.NoError(t, err)
		assert.Equal(t, `{"ok":true}`, out)
	})
}
