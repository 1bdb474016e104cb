package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"

	"github.com/repcoach/repcoach/engine/core"
	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
	"github.com/repcoach/repcoach/engine/llm/orchestrator"
	"github.com/repcoach/repcoach/engine/llm/telemetry"
	"github.com/repcoach/repcoach/engine/llm/tool"
	"github.com/repcoach/repcoach/pkg/config"
	"github.com/repcoach/repcoach/pkg/logger"
)

const (
	defaultAttempts    = 3
	defaultBackoffBase = 400 * time.Millisecond

	KindSend   = "send"
	KindStream = "stream"
	KindTools  = "tools"
)

// Config controls retries and per-call defaults.
type Config struct {
	// Attempts is the total number of tries, including the first.
	Attempts    int
	BackoffBase time.Duration
	// Timeout bounds each upstream attempt. Zero disables it.
	Timeout   time.Duration
	MaxRounds int
	Options   llmadapter.CallOptions
}

// ConfigFromApp maps application config onto gateway settings.
func ConfigFromApp(llm *config.LLMConfig, agent *config.AgentConfig) Config {
	cfg := Config{
		Attempts:    llm.RetryAttempts,
		BackoffBase: llm.RetryBackoffBase,
		Timeout:     llm.Timeout,
		Options: llmadapter.CallOptions{
			Model:     llm.Model,
			MaxTokens: int32(min(llm.MaxTokens, 1<<30)), // #nosec G115 -- clamped
		},
	}
	if agent != nil {
		cfg.MaxRounds = agent.MaxRounds
	}
	return cfg
}

// Exchange is one request/response pair reported to the audit sink.
type Exchange struct {
	Kind     string
	Request  *llmadapter.LLMRequest
	Response *llmadapter.LLMResponse
	Err      error
	Attempts int
	Duration time.Duration
}

// AuditSink receives every exchange. It must not block the caller for long
// and its failures are its own concern.
type AuditSink interface {
	RecordExchange(ctx context.Context, ex *Exchange)
}

// ToolResponse is the outcome of SendWithTools.
type ToolResponse struct {
	Text           string
	ToolExecutions []orchestrator.ToolExecution
}

// Gateway is the single entry point to the language model.
type Gateway struct {
	client llmadapter.LLMClient
	cfg    Config
	audit  AuditSink
}

type Option func(*Gateway)

func WithAuditSink(sink AuditSink) Option {
	return func(g *Gateway) { g.audit = sink }
}

func New(client llmadapter.LLMClient, cfg Config, opts ...Option) (*Gateway, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client cannot be nil")
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	g := &Gateway{client: client, cfg: cfg}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Send issues a plain text request and returns the model's text.
func (g *Gateway) Send(ctx context.Context, conversation []llmadapter.Message, systemPrompt string) (string, error) {
	resp, err := g.call(ctx, KindSend, g.textRequest(conversation, systemPrompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Stream behaves like Send but reports text deltas to onChunk. Once a chunk
// has been delivered the call is no longer retried.
func (g *Gateway) Stream(
	ctx context.Context,
	conversation []llmadapter.Message,
	systemPrompt string,
	onChunk llmadapter.StreamHandler,
) (string, error) {
	resp, err := g.call(ctx, KindStream, g.textRequest(conversation, systemPrompt), onChunk)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// SendWithTools runs the bounded tool-calling loop.
func (g *Gateway) SendWithTools(
	ctx context.Context,
	conversation []llmadapter.Message,
	systemPrompt string,
	tools *tool.Registry,
) (*ToolResponse, error) {
	loop, err := orchestrator.New(toolCaller{g}, orchestrator.Config{
		MaxRounds: g.cfg.MaxRounds,
		Options:   g.cfg.Options,
	})
	if err != nil {
		return nil, err
	}
	res, err := loop.Run(ctx, orchestrator.Request{
		SystemPrompt: systemPrompt,
		Messages:     conversation,
		Tools:        tools,
	})
	if err != nil {
		return nil, err
	}
	return &ToolResponse{Text: res.Text, ToolExecutions: res.ToolExecutions}, nil
}

// Complete performs one retried model call.
func (g *Gateway) Complete(ctx context.Context, req *llmadapter.LLMRequest) (*llmadapter.LLMResponse, error) {
	return g.call(ctx, KindSend, req, nil)
}

type toolCaller struct{ g *Gateway }

func (c toolCaller) Complete(ctx context.Context, req *llmadapter.LLMRequest) (*llmadapter.LLMResponse, error) {
	return c.g.call(ctx, KindTools, req, nil)
}

func (g *Gateway) textRequest(conversation []llmadapter.Message, systemPrompt string) *llmadapter.LLMRequest {
	return &llmadapter.LLMRequest{
		SystemPrompt: systemPrompt,
		Messages:     conversation,
		Options:      g.cfg.Options,
	}
}

func (g *Gateway) call(
	ctx context.Context,
	kind string,
	req *llmadapter.LLMRequest,
	onChunk llmadapter.StreamHandler,
) (_ *llmadapter.LLMResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "llm."+kind, attribute.String("model", req.Options.Model))
	defer func() { telemetry.EndSpan(span, err) }()

	log := telemetry.Logger(ctx)
	started := time.Now()
	attempts := 0
	streamed := false
	wrapped := onChunk
	if onChunk != nil {
		wrapped = func(chunk string) error {
			streamed = true
			return onChunk(chunk)
		}
	}
	backoff := retry.WithMaxRetries(uint64(g.cfg.Attempts-1), retry.NewExponential(g.cfg.BackoffBase))

	var response *llmadapter.LLMResponse
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		recordAttempt(ctx, kind, attempts > 1)
		telemetry.Step(ctx, "llm_attempt", "kind", kind, "attempt", attempts)
		resp, callErr := g.attempt(ctx, req, wrapped)
		if callErr == nil {
			response = resp
			return nil
		}
		if !streamed && isTransientWithContext(ctx, callErr) {
			log.Warn("Transient model failure",
				"kind", kind,
				"attempt", attempts,
				"max_attempts", g.cfg.Attempts,
				"error", core.RedactError(callErr),
			)
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	duration := time.Since(started)
	span.SetAttributes(attribute.Int("attempts", attempts))
	g.recordExchange(ctx, &Exchange{
		Kind:     kind,
		Request:  req,
		Response: response,
		Err:      err,
		Attempts: attempts,
		Duration: duration,
	})
	if err != nil {
		recordCall(ctx, kind, "error", duration, nil)
		telemetry.Step(ctx, "llm_failed", "kind", kind, "attempts", attempts)
		code := core.CodeLLMGeneration
		if IsTransient(err) {
			code = core.CodeLLMTransient
		}
		return nil, core.NewError(err, code, map[string]any{"attempts": attempts, "kind": kind})
	}
	var usage *usageTotals
	if response.Usage != nil {
		usage = &usageTotals{prompt: response.Usage.PromptTokens, completion: response.Usage.CompletionTokens}
	}
	recordCall(ctx, kind, "success", duration, usage)
	logger.FromContext(ctx).Debug("Model call succeeded",
		"kind", kind,
		"attempts", attempts,
		"duration_ms", duration.Milliseconds(),
		"stop_reason", string(response.StopReason),
	)
	return response, nil
}

func (g *Gateway) attempt(
	ctx context.Context,
	req *llmadapter.LLMRequest,
	onChunk llmadapter.StreamHandler,
) (*llmadapter.LLMResponse, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}
	if onChunk != nil {
		return g.client.StreamContent(ctx, req, onChunk)
	}
	return g.client.GenerateContent(ctx, req)
}

func (g *Gateway) recordExchange(ctx context.Context, ex *Exchange) {
	if g.audit == nil {
		return
	}
	g.audit.RecordExchange(context.WithoutCancel(ctx), ex)
}
