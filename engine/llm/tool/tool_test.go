package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repcoach/repcoach/engine/core"
	"github.com/repcoach/repcoach/engine/schema"
)

func echoTool(calls *int) *Definition {
	return &Definition{
		Name:        "echo",
		Description: "echo input",
		InputSchema: schema.Schema{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []any{"text"},
		},
		Execute: func(_ context.Context, input map[string]any) (any, error) {
			*calls++
			return map[string]any{"echo": input["text"]}, nil
		},
	}
}

func TestDefinition_Call(t *testing.T) {
	t.Run("Should validate then execute", func(t *testing.T) {
		calls := 0
		out, err := echoTool(&calls).Call(t.Context(), json.RawMessage(`{"text":"hi"}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"echo":"hi"}`, out)
		assert.Equal(t, 1, calls)
	})

	t.Run("Should reject invalid input without executing", func(t *testing.T) {
		calls := 0
		_, err := echoTool(&calls).Call(t.Context(), json.RawMessage(`{"text":5}`))
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodeToolInvalidInput))
		assert.Zero(t, calls)
	})

	t.Run("Should reject non object input", func(t *testing.T) {
		calls := 0
		_, err := echoTool(&calls).Call(t.Context(), json.RawMessage(`[1,2]`))
		assert.True(t, core.HasCode(err, core.CodeToolInvalidInput))
	})

	t.Run("Should treat empty input as an empty object", func(t *testing.T) {
		def := &Definition{Name: "noop", Execute: func(_ context.Context, in map[string]any) (any, error) {
			return fmt.Sprintf("%d", len(in)), nil
		}}
		out, err := def.Call(t.Context(), nil)
		require.NoError(t, err)
		assert.Equal(t, "0", out)
	})
}

func TestIsFatal(t *testing.T) {
	t.Run("Should detect marked and coded errors", func(t *testing.T) {
		assert.True(t, IsFatal(Fatal(errors.New("x"))))
		assert.True(t, IsFatal(fmt.Errorf("wrap: %w", core.NewError(nil, core.CodeNotFound, nil))))
		assert.True(t, IsFatal(core.NewError(errors.New("denied"), core.CodeUnauthorized, nil)))
		assert.True(t, IsFatal(core.NewError(errors.New("disk full"), core.CodeStoreFailure, nil)))
		assert.False(t, IsFatal(core.NewError(errors.New("bad"), core.CodeValidationFailed, nil)))
		assert.False(t, IsFatal(nil))
	})
}

func TestRegistry(t *testing.T) {
	t.Run("Should keep order and reject duplicates", func(t *testing.T) {
		calls := 0
		r, err := NewRegistry(echoTool(&calls), &Definition{Name: "second"})
		require.NoError(t, err)
		defs := r.Definitions()
		require.Len(t, defs, 2)
		assert.Equal(t, "echo", defs[0].Name)
		assert.Equal(t, "object", defs[1].Parameters["type"])
		assert.Error(t, r.Register(&Definition{Name: "echo"}))
		_, ok := r.Find("missing")
		assert.False(t, ok)
	})

	t.Run("Should tolerate a nil registry", func(t *testing.T) {
		var r *Registry
		assert.Zero(t, r.Len())
		assert.Nil(t, r.Definitions())
	})
}
