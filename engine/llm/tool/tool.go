package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/repcoach/repcoach/engine/core"
	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
	"github.com/repcoach/repcoach/engine/schema"
)

// Handler executes a tool with input that already passed schema validation.
type Handler func(ctx context.Context, input map[string]any) (any, error)

// Definition describes one model-callable tool.
type Definition struct {
	Name        string
	Description string
	InputSchema schema.Schema
	Execute     Handler
}

// Adapter returns the provider-neutral declaration sent to the model.
func (d *Definition) Adapter() llmadapter.ToolDefinition {
	params := map[string]any(d.InputSchema)
	if params == nil {
		params = map[string]any{"type": "object"}
	}
	return llmadapter.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: params}
}

// Call decodes raw arguments, validates them once against InputSchema and
// runs Execute. The result is returned as JSON text.
func (d *Definition) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	input, err := DecodeInput(raw)
	if err != nil {
		return "", err
	}
	if err := d.InputSchema.Validate(ctx, input); err != nil {
		return "", core.NewError(err, core.CodeToolInvalidInput, map[string]any{"tool": d.Name})
	}
	if d.Execute == nil {
		return "", core.NewError(fmt.Errorf("tool %s has no handler", d.Name), core.CodeToolExecution, nil)
	}
	out, err := d.Execute(ctx, input)
	if err != nil {
		return "", err
	}
	switch v := out.(type) {
	case string:
		return v, nil
	case json.RawMessage:
		return string(v), nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", core.NewError(
			fmt.Errorf("failed to encode %s result: %w", d.Name, err),
			core.CodeToolExecution,
			map[string]any{"tool": d.Name},
		)
	}
	return string(data), nil
}

// DecodeInput parses tool arguments into an object. Empty input is an empty object.
func DecodeInput(raw json.RawMessage) (map[string]any, error) {
	if strings.TrimSpace(string(raw)) == "" {
		return map[string]any{}, nil
	}
	var input map[string]any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, core.NewError(
			fmt.Errorf("tool input must be a JSON object: %w", err),
			core.CodeToolInvalidInput,
			nil,
		)
	}
	if input == nil {
		input = map[string]any{}
	}
	return input, nil
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as aborting the whole turn instead of being reported back
// to the model.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err was marked with Fatal or carries an
// authorization, not-found or store failure code.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var fe *fatalError
	if errors.As(err, &fe) {
		return true
	}
	return core.HasCode(err, core.CodeUnauthorized) ||
		core.HasCode(err, core.CodeNotFound) ||
		core.HasCode(err, core.CodeStoreFailure)
}
