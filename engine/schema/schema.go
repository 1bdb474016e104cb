package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kaptinlin/jsonschema"
)

// -----------------------------------------------------------------------------
// Schema
// -----------------------------------------------------------------------------

type Schema map[string]any
type Result = jsonschema.EvaluationResult

var compiledSchemaCache sync.Map

// ValidationError lists every violation found in one validation pass.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "schema validation failed"
	}
	return "schema validation failed: " + strings.Join(e.Problems, "; ")
}

func (s Schema) String() string {
	bytes, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(bytes)
}

// FromJSON decodes a schema document.
func FromJSON(data []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	return s, nil
}

// Compile returns the compiled form, reusing earlier compilations of an
// identical document.
func (s Schema) Compile(ctx context.Context) (*jsonschema.Schema, error) {
	if s == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	key := string(bytes)
	if cached, ok := compiledSchemaCache.Load(key); ok {
		recordSchemaCompile(ctx, 0, true)
		return cached.(*jsonschema.Schema), nil
	}
	start := time.Now()
	compiled, err := jsonschema.NewCompiler().Compile(bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	recordSchemaCompile(ctx, time.Since(start), false)
	actual, _ := compiledSchemaCache.LoadOrStore(key, compiled)
	return actual.(*jsonschema.Schema), nil
}

// Validate checks value against the schema. A nil schema accepts anything.
func (s Schema) Validate(ctx context.Context, value any) error {
	compiled, err := s.Compile(ctx)
	if err != nil {
		return err
	}
	if compiled == nil {
		return nil
	}
	start := time.Now()
	result := compiled.Validate(value)
	recordSchemaValidation(ctx, time.Since(start), result.Valid)
	if result.Valid {
		return nil
	}
	return &ValidationError{Problems: collectProblems(result)}
}

func collectProblems(result *Result) []string {
	seen := make(map[string]struct{})
	var problems []string
	var walk func(r *Result)
	walk = func(r *Result) {
		if r == nil || r.Valid {
			return
		}
		keys := make([]string, 0, len(r.Errors))
		for k := range r.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		location := r.InstanceLocation
		if location == "" {
			location = "/"
		}
		for _, k := range keys {
			msg := fmt.Sprintf("%s: %s", location, r.Errors[k].Error())
			if _, dup := seen[msg]; dup {
				continue
			}
			seen[msg] = struct{}{}
			problems = append(problems, msg)
		}
		for _, detail := range r.Details {
			walk(detail)
		}
	}
	walk(result)
	return problems
}
