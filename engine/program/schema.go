package program

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/repcoach/repcoach/engine/schema"
)

var (
	programSchemaOnce sync.Once
	programSchema     schema.Schema
	programSchemaErr  error
)

// serverOwnedKeys are never taken from model output.
var serverOwnedKeys = []string{"userId", "currentVersionId", "createdAt", "updatedAt"}

// Schema returns the JSON schema for Program reflected from the Go types.
// Unknown properties are tolerated so alias keys survive until decoding drops them.
func Schema() (schema.Schema, error) {
	programSchemaOnce.Do(func() {
		reflector := &jsonschema.Reflector{
			DoNotReference:            true,
			ExpandedStruct:            true,
			AllowAdditionalProperties: true,
		}
		data, err := json.Marshal(reflector.Reflect(&Program{}))
		if err != nil {
			programSchemaErr = fmt.Errorf("failed to marshal program schema: %w", err)
			return
		}
		programSchema, programSchemaErr = schema.FromJSON(data)
	})
	return programSchema, programSchemaErr
}

// ParseError reports input that is not decodable JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "invalid program JSON: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// ParseJSON decodes, normalizes and validates a program document.
func ParseJSON(ctx context.Context, data []byte) (*Program, error) {
	var raw any
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return nil, &ParseError{Err: err}
	}
	return Parse(ctx, raw)
}

// Parse validates already-decoded JSON: aliases are normalized, the schema
// is checked, then the domain invariants.
func Parse(ctx context.Context, raw any) (*Program, error) {
	normalized := NormalizeScheduleAliases(raw)
	if root, ok := normalized.(map[string]any); ok {
		for _, key := range serverOwnedKeys {
			delete(root, key)
		}
	}
	s, err := Schema()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(ctx, normalized); err != nil {
		return nil, err
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	var p Program
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &ParseError{Err: err}
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
