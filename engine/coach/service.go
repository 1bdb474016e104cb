package coach

import (
	"context"
	"fmt"
	"strings"

	"github.com/repcoach/repcoach/engine/auth/userctx"
	"github.com/repcoach/repcoach/engine/core"
	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
	"github.com/repcoach/repcoach/engine/llm/gateway"
	"github.com/repcoach/repcoach/engine/llm/structured"
	"github.com/repcoach/repcoach/engine/llm/telemetry"
	"github.com/repcoach/repcoach/engine/llm/tool"
	"github.com/repcoach/repcoach/engine/program"
	"github.com/repcoach/repcoach/engine/store"
	"github.com/repcoach/repcoach/pkg/config"
	"github.com/repcoach/repcoach/pkg/logger"
)

// Model is the part of the gateway the coach depends on.
type Model interface {
	Send(ctx context.Context, conversation []llmadapter.Message, systemPrompt string) (string, error)
	Stream(
		ctx context.Context,
		conversation []llmadapter.Message,
		systemPrompt string,
		onChunk llmadapter.StreamHandler,
	) (string, error)
	SendWithTools(
		ctx context.Context,
		conversation []llmadapter.Message,
		systemPrompt string,
		tools *tool.Registry,
	) (*gateway.ToolResponse, error)
}

var _ Model = (*gateway.Gateway)(nil)

type Config struct {
	// ToolCalling lets the model persist programs through tools. When off,
	// chat is plain text and programs are produced with Generate.
	ToolCalling    bool
	RepairAttempts int
}

func ConfigFromApp(agent *config.AgentConfig) Config {
	return Config{ToolCalling: agent.ToolCalling, RepairAttempts: agent.RepairAttempts}
}

type EventType string

const (
	EventStatus EventType = "status"
	EventText   EventType = "text"
	EventAction EventType = "action"
	EventDone   EventType = "done"
	EventError  EventType = "error"
)

// Event is one server-sent update of a streamed turn.
type Event struct {
	Type   EventType `json:"type"`
	Status string    `json:"status,omitempty"`
	Text   string    `json:"text,omitempty"`
	Action *Action   `json:"action,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// EventSink receives events in order. A nil sink disables streaming.
type EventSink func(Event)

func (s EventSink) emit(e Event) {
	if s != nil {
		s(e)
	}
}

type Service struct {
	model        Model
	store        store.Store
	prompts      *Prompts
	repairPrompt string
	cfg          Config
	reconcile    []program.ReconcileOption
}

type Option func(*Service)

// WithReconcileOptions fixes ids and clock for reconciliation, mostly in tests.
func WithReconcileOptions(opts ...program.ReconcileOption) Option {
	return func(s *Service) { s.reconcile = opts }
}

func NewService(model Model, st store.Store, prompts *Prompts, cfg Config, opts ...Option) (*Service, error) {
	if model == nil || st == nil || prompts == nil {
		return nil, fmt.Errorf("coach service requires a model, a store and prompts")
	}
	repairPrompt, err := prompts.Render(PromptRepair, nil)
	if err != nil {
		return nil, err
	}
	s := &Service{model: model, store: st, prompts: prompts, repairPrompt: repairPrompt, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// HandleTurn answers one chat turn. With tool calling on, the model may
// create or modify a program; the resulting action is returned with the
// model's summary.
func (s *Service) HandleTurn(ctx context.Context, req *TurnRequest, sink EventSink) (*TurnResponse, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	kind, err := req.validate()
	if err != nil {
		return nil, err
	}
	ctx, tracer := telemetry.Start(ctx, "chat")
	ctx = WithAuditSource(ctx, "chat")
	ctx = logger.ContextWithLogger(ctx, logger.FromContext(ctx).With(
		"trace_id", tracer.ID(),
		"conversation_type", string(kind),
	))

	sink.emit(Event{Type: EventStatus, Status: "preparing"})
	m := s.mutator(user)
	systemPrompt, err := s.prompts.Conversation(kind, s.cfg.ToolCalling)
	if err != nil {
		return nil, err
	}
	if kind == ConversationModification {
		current, err := m.load(ctx, req.ProgramID)
		if err != nil {
			return nil, err
		}
		systemPrompt, err = WithProgramContext(systemPrompt, current, s.exerciseDetails(ctx, current))
		if err != nil {
			return nil, err
		}
	}
	telemetry.Step(ctx, "prompt_ready", "prompt_chars", len(systemPrompt))
	conversation := messages(req.Messages)

	if !s.cfg.ToolCalling {
		text, err := s.plainTurn(ctx, conversation, systemPrompt, sink)
		if err != nil {
			return nil, err
		}
		return &TurnResponse{Text: text}, nil
	}

	tools, err := newTools(kind, m, req.ProgramID)
	if err != nil {
		return nil, err
	}
	sink.emit(Event{Type: EventStatus, Status: "thinking"})
	resp, err := s.model.SendWithTools(ctx, conversation, systemPrompt, tools)
	if err != nil {
		return nil, err
	}
	action := lastAction(resp.ToolExecutions)
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		text = DefaultCompletionText(action)
	}
	sink.emit(Event{Type: EventText, Text: text})
	if action != nil {
		sink.emit(Event{Type: EventAction, Action: action})
	}
	telemetry.Step(ctx, "turn_complete", "tool_executions", len(resp.ToolExecutions), "action", action != nil)
	return &TurnResponse{Text: text, Action: action}, nil
}

func (s *Service) plainTurn(
	ctx context.Context,
	conversation []llmadapter.Message,
	systemPrompt string,
	sink EventSink,
) (string, error) {
	if sink == nil {
		return s.model.Send(ctx, conversation, systemPrompt)
	}
	sink.emit(Event{Type: EventStatus, Status: "thinking"})
	return s.model.Stream(ctx, conversation, systemPrompt, func(chunk string) error {
		sink.emit(Event{Type: EventText, Text: chunk})
		return nil
	})
}

// GenerateRequest asks for a program to be produced from a finished conversation.
type GenerateRequest struct {
	Messages         []Turn `json:"messages"         binding:"required,dive"`
	ConversationType string `json:"conversationType" binding:"required"`
	ProgramID        string `json:"programId,omitempty"`
}

// Generate turns a conversation into a program without tools: the model
// returns JSON which goes through the repair loop and is then created, or
// reconciled with the current program and updated.
func (s *Service) Generate(ctx context.Context, req *GenerateRequest) (*Action, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	turn := TurnRequest{Messages: req.Messages, ConversationType: req.ConversationType, ProgramID: req.ProgramID}
	kind, err := turn.validate()
	if err != nil {
		return nil, err
	}
	ctx, _ = telemetry.Start(ctx, "generate")
	ctx = WithAuditSource(ctx, "generate")
	m := s.mutator(user)

	systemPrompt, err := s.prompts.Generation(kind)
	if err != nil {
		return nil, err
	}
	var current *program.Program
	if kind == ConversationModification {
		if current, err = m.load(ctx, req.ProgramID); err != nil {
			return nil, err
		}
		if systemPrompt, err = WithProgramContext(systemPrompt, current, s.exerciseDetails(ctx, current)); err != nil {
			return nil, err
		}
	}
	text, err := s.model.Send(ctx, messages(req.Messages), systemPrompt)
	if err != nil {
		return nil, err
	}
	proposed, err := s.repairLoop().Run(ctx, text, repairContext(current))
	if err != nil {
		return nil, err
	}
	if current == nil {
		return m.create(ctx, proposed)
	}
	return m.modify(ctx, current, proposed)
}

// RepairRequest carries model output that failed to parse or validate.
type RepairRequest struct {
	RawText         string         `json:"rawText"         binding:"required"`
	ParseError      string         `json:"parseError,omitempty"`
	ValidationError string         `json:"validationError,omitempty"`
	CurrentProgram  map[string]any `json:"currentProgram,omitempty"`
}

// RepairResult holds the validated program.
type RepairResult struct {
	Program *program.Program `json:"program"`
}

// Repair runs the repair loop on text the client could not use. The current
// program, when given, biases the repair toward keeping its ids.
func (s *Service) Repair(ctx context.Context, req *RepairRequest) (*RepairResult, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.RawText) == "" {
		return nil, core.NewError(fmt.Errorf("rawText is required"), core.CodeInvalidRequest, nil)
	}
	ctx, _ = telemetry.Start(ctx, "repair")
	ctx = WithAuditSource(ctx, "repair")
	logger.FromContext(ctx).Info("Repair requested",
		"raw_text_length", len(req.RawText),
		"has_parse_error", req.ParseError != "",
		"has_validation_error", req.ValidationError != "",
		"has_current_program", req.CurrentProgram != nil,
	)
	var current any
	if req.CurrentProgram != nil {
		current = req.CurrentProgram
	}
	p, err := s.repairLoop().Run(ctx, req.RawText, current)
	if err != nil {
		return nil, err
	}
	return &RepairResult{Program: p}, nil
}

func (s *Service) repairLoop() *structured.Loop[*program.Program] {
	return structured.NewLoop[*program.Program](
		s.model,
		program.Parse,
		s.repairPrompt,
		structured.WithRepairs(s.cfg.RepairAttempts),
	)
}

func repairContext(current *program.Program) any {
	if current == nil {
		return nil
	}
	return current
}

func (s *Service) mutator(user *userctx.User) *mutator {
	return &mutator{store: s.store, user: user, reconcile: s.reconcile}
}

// exerciseDetails loads stored descriptions for the program's exercises.
// Failures only drop the section from the prompt.
func (s *Service) exerciseDetails(ctx context.Context, p *program.Program) []ExerciseDetail {
	names := store.NormalizeNames(p.ExerciseNames())
	if len(names) == 0 {
		return nil
	}
	rows, err := s.store.Descriptions().GetByNames(ctx, names)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to load exercise descriptions for program context",
			"program_id", p.ID,
			"error", core.RedactError(err),
		)
		return nil
	}
	details := make([]ExerciseDetail, 0, len(rows))
	for _, row := range rows {
		details = append(details, ExerciseDetail{Name: row.ExerciseName, Description: row.Description})
	}
	return details
}

func requireUser(ctx context.Context) (*userctx.User, error) {
	user, err := userctx.MustUserFromContext(ctx)
	if err != nil {
		return nil, core.NewError(err, core.CodeUnauthorized, nil)
	}
	return user, nil
}
