package structured

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/repcoach/repcoach/engine/core"
	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
	"github.com/repcoach/repcoach/engine/llm/telemetry"
	"github.com/repcoach/repcoach/pkg/logger"
)

const DefaultRepairs = 2

// Sender is the plain text model call used for repairs.
type Sender interface {
	Send(ctx context.Context, conversation []llmadapter.Message, systemPrompt string) (string, error)
}

// ParseFunc validates decoded JSON and builds the typed value.
type ParseFunc[T any] func(ctx context.Context, raw any) (T, error)

// ParseError reports text that held no decodable JSON object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// RepairInput is everything the repair prompt is built from.
type RepairInput struct {
	RawText         string
	ParseError      string
	ValidationError string
	Current         any
}

// RepairMessage formats the user message asking the model to fix output.
func RepairMessage(in RepairInput) string {
	orNA := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "n/a"
		}
		return s
	}
	parts := []string{
		"Please repair this program output into valid JSON.",
		"Parse error: " + orNA(in.ParseError),
		"Validation error: " + orNA(in.ValidationError),
	}
	if in.Current != nil {
		if data, err := json.Marshal(in.Current); err == nil {
			parts = append(parts, "Current program (preserve IDs where possible): "+string(data))
		}
	}
	parts = append(parts, "Malformed output:\n"+in.RawText)
	return strings.Join(parts, "\n\n")
}

// Loop validates model output, asking the model to repair it when it fails.
type Loop[T any] struct {
	sender       Sender
	parse        ParseFunc[T]
	systemPrompt string
	repairs      int
}

type LoopOption func(*loopOptions)

type loopOptions struct {
	repairs int
}

// WithRepairs sets how many repair round trips follow the first attempt.
func WithRepairs(n int) LoopOption {
	return func(o *loopOptions) { o.repairs = n }
}

func NewLoop[T any](sender Sender, parse ParseFunc[T], systemPrompt string, opts ...LoopOption) *Loop[T] {
	o := loopOptions{repairs: DefaultRepairs}
	for _, opt := range opts {
		opt(&o)
	}
	if o.repairs < 0 {
		o.repairs = 0
	}
	return &Loop[T]{sender: sender, parse: parse, systemPrompt: systemPrompt, repairs: o.repairs}
}

// Run validates text, then up to the configured number of repair results.
// current, when non-nil, is shown to the model so ids survive the repair.
func (l *Loop[T]) Run(ctx context.Context, text string, current any) (T, error) {
	var zero T
	log := logger.FromContext(ctx)
	value, err := l.validate(ctx, text)
	if err == nil {
		recordRepair(ctx, "valid")
		return value, nil
	}
	for attempt := 1; attempt <= l.repairs; attempt++ {
		log.Info("Model output invalid, requesting repair", "attempt", attempt, "error", core.RedactError(err))
		telemetry.Step(ctx, "repair_request", "attempt", attempt)
		repaired, sendErr := l.sender.Send(ctx, []llmadapter.Message{{
			Role:    llmadapter.RoleUser,
			Content: RepairMessage(repairInput(text, err, current)),
		}}, l.systemPrompt)
		if sendErr != nil {
			recordRepair(ctx, "send_failed")
			return zero, sendErr
		}
		text = repaired
		value, err = l.validate(ctx, text)
		if err == nil {
			recordRepair(ctx, "repaired")
			telemetry.Step(ctx, "repair_succeeded", "attempt", attempt)
			return value, nil
		}
	}
	recordRepair(ctx, "exhausted")
	code := core.CodeValidationFailed
	var pe *ParseError
	if errors.As(err, &pe) {
		code = core.CodeExtractionFailed
	}
	return zero, core.NewError(err, code, map[string]any{"attempts": l.repairs + 1})
}

func (l *Loop[T]) validate(ctx context.Context, text string) (T, error) {
	var zero T
	raw, err := Decode(text)
	if err != nil {
		return zero, err
	}
	return l.parse(ctx, raw)
}

// Decode extracts and decodes the JSON object in text.
func Decode(text string) (any, error) {
	jsonText, err := Extract(text)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	var raw any
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	return raw, nil
}

func repairInput(text string, err error, current any) RepairInput {
	in := RepairInput{RawText: text, Current: current}
	var pe *ParseError
	if errors.As(err, &pe) {
		in.ParseError = err.Error()
	} else {
		in.ValidationError = err.Error()
	}
	return in
}
