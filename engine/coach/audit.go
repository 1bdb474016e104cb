package coach

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/repcoach/repcoach/engine/auth/userctx"
	"github.com/repcoach/repcoach/engine/core"
	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
	"github.com/repcoach/repcoach/engine/llm/gateway"
	"github.com/repcoach/repcoach/engine/store"
	"github.com/repcoach/repcoach/pkg/config"
	"github.com/repcoach/repcoach/pkg/logger"
)

type auditSourceKey struct{}

// WithAuditSource labels model exchanges made under ctx.
func WithAuditSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, auditSourceKey{}, source)
}

func auditSource(ctx context.Context, kind string) string {
	source, _ := ctx.Value(auditSourceKey{}).(string)
	if source == "" {
		source = "llm"
	}
	return source + "." + kind
}

// AuditRecorder stores model exchanges for users on the allow-list.
type AuditRecorder struct {
	repo    store.AuditRepository
	enabled bool
	allowed map[string]struct{}
}

var _ gateway.AuditSink = (*AuditRecorder)(nil)

func NewAuditRecorder(repo store.AuditRepository, cfg *config.AuditConfig) *AuditRecorder {
	allowed := make(map[string]struct{}, len(cfg.AllowedEmails))
	for _, email := range cfg.AllowedEmails {
		if e := normalizeEmail(email); e != "" {
			allowed[e] = struct{}{}
		}
	}
	return &AuditRecorder{repo: repo, enabled: cfg.Enabled, allowed: allowed}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *AuditRecorder) Allowed(email string) bool {
	if !a.enabled {
		return false
	}
	_, ok := a.allowed[normalizeEmail(email)]
	return ok
}

// RecordExchange never fails the caller; store errors are logged.
func (a *AuditRecorder) RecordExchange(ctx context.Context, ex *gateway.Exchange) {
	user, ok := userctx.UserFromContext(ctx)
	if !ok || !a.Allowed(user.Email) {
		return
	}
	entry := &store.AuditEntry{
		UserID: user.ID,
		Source: auditSource(ctx, ex.Kind),
	}
	var err error
	if entry.RequestPayload, err = json.Marshal(auditRequestOf(ex)); err != nil {
		logger.FromContext(ctx).Warn("Failed to encode audit request", "error", err)
		return
	}
	if ex.Response != nil {
		if entry.ResponsePayload, err = json.Marshal(auditResponseOf(ex)); err != nil {
			logger.FromContext(ctx).Warn("Failed to encode audit response", "error", err)
			return
		}
	}
	if ex.Err != nil {
		msg := core.RedactError(ex.Err)
		entry.ErrorMessage = &msg
	}
	if err := a.repo.Record(ctx, entry); err != nil {
		logger.FromContext(ctx).Warn("Failed to persist audit entry",
			"source", entry.Source,
			"error", core.RedactError(err),
		)
	}
}

// List returns the caller's newest entries. Callers outside the allow-list
// get a forbidden error.
func (a *AuditRecorder) List(ctx context.Context, limit int) ([]*store.AuditEntry, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !a.Allowed(user.Email) {
		return nil, core.NewError(errors.New("forbidden"), core.CodeForbidden, nil)
	}
	entries, err := a.repo.List(ctx, user.ID, store.ClampAuditLimit(limit))
	if err != nil {
		return nil, storeError(err, "list audit entries")
	}
	return entries, nil
}

type auditRequest struct {
	Model    string         `json:"model,omitempty"`
	System   string         `json:"system"`
	Messages []auditMessage `json:"messages"`
	Tools    []string       `json:"tools,omitempty"`
}

type auditMessage struct {
	Role        string           `json:"role"`
	Content     string           `json:"content,omitempty"`
	ToolCalls   []auditToolCall  `json:"toolCalls,omitempty"`
	ToolResults []auditToolReply `json:"toolResults,omitempty"`
}

type auditToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

type auditToolReply struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

type auditResponse struct {
	Content    string          `json:"content"`
	ToolCalls  []auditToolCall `json:"toolCalls,omitempty"`
	StopReason string          `json:"stopReason,omitempty"`
	Attempts   int             `json:"attempts"`
	DurationMS int64           `json:"durationMs"`
}

func auditRequestOf(ex *gateway.Exchange) auditRequest {
	out := auditRequest{}
	if ex.Request == nil {
		return out
	}
	out.Model = ex.Request.Options.Model
	out.System = ex.Request.SystemPrompt
	out.Messages = make([]auditMessage, 0, len(ex.Request.Messages))
	for _, m := range ex.Request.Messages {
		msg := auditMessage{Role: m.Role, Content: m.Content, ToolCalls: auditCalls(m.ToolCalls)}
		for _, r := range m.ToolResults {
			msg.ToolResults = append(msg.ToolResults, auditToolReply{ID: r.ID, Content: r.Content, IsError: r.IsError})
		}
		out.Messages = append(out.Messages, msg)
	}
	for _, t := range ex.Request.Tools {
		out.Tools = append(out.Tools, t.Name)
	}
	return out
}

func auditResponseOf(ex *gateway.Exchange) auditResponse {
	return auditResponse{
		Content:    ex.Response.Content,
		ToolCalls:  auditCalls(ex.Response.ToolCalls),
		StopReason: string(ex.Response.StopReason),
		Attempts:   ex.Attempts,
		DurationMS: ex.Duration.Milliseconds(),
	}
}

func auditCalls(calls []llmadapter.ToolCall) []auditToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]auditToolCall, len(calls))
	for i, c := range calls {
		out[i] = auditToolCall{ID: c.ID, Name: c.Name}
		if json.Valid(c.Arguments) {
			out[i].Input = c.Arguments
		}
	}
	return out
}
