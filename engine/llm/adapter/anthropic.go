package llmadapter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/repcoach/repcoach/pkg/logger"
)

const (
	ProviderAnthropic = "anthropic"

	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicAPIVersion     = "2023-06-01"
	anthropicMessagesPath   = "/v1/messages"
	defaultMaxTokens        = 16384
)

// AnthropicConfig configures the Messages API client.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// AnthropicClient talks to the Anthropic Messages API directly so tool_result
// blocks can carry is_error and tool_choice can disable parallel calls.
type AnthropicClient struct {
	http      *resty.Client
	model     string
	maxTokens int
}

func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic api key is required")
		}
		baseURL = defaultAnthropicBaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("anthropic-version", anthropicAPIVersion)
	if cfg.APIKey != "" {
		client.SetHeader("x-api-key", cfg.APIKey)
	}
	return &AnthropicClient{http: client, model: cfg.Model, maxTokens: maxTokens}, nil
}

type anthropicRequest struct {
	Model       string               `json:"model"`
	Messages    []anthropicMessage   `json:"messages"`
	System      string               `json:"system,omitempty"`
	MaxTokens   int                  `json:"max_tokens"`
	Stream      bool                 `json:"stream,omitempty"`
	Temperature *float64             `json:"temperature,omitempty"`
	Tools       []anthropicTool      `json:"tools,omitempty"`
	ToolChoice  *anthropicToolChoice `json:"tool_choice,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type                   string `json:"type"`
	Name                   string `json:"name,omitempty"`
	DisableParallelToolUse bool   `json:"disable_parallel_tool_use,omitempty"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicErrorBody struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type anthropicStreamEvent struct {
	Type         string             `json:"type"`
	Index        int                `json:"index"`
	ContentBlock *anthropicContent  `json:"content_block,omitempty"`
	Delta        *anthropicDelta    `json:"delta,omitempty"`
	Message      *anthropicResponse `json:"message,omitempty"`
	Usage        *anthropicUsage    `json:"usage,omitempty"`
	Error        *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type anthropicDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

func (c *AnthropicClient) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	body, err := c.buildRequest(req, false)
	if err != nil {
		return nil, err
	}
	var out anthropicResponse
	var apiErr anthropicErrorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post(anthropicMessagesPath)
	if err != nil {
		return nil, Classify(ProviderAnthropic, fmt.Errorf("anthropic request failed: %w", err))
	}
	if resp.IsError() {
		return nil, statusError(resp.StatusCode(), &apiErr, resp.String())
	}
	return convertAnthropicResponse(&out), nil
}

func (c *AnthropicClient) StreamContent(
	ctx context.Context,
	req *LLMRequest,
	onChunk StreamHandler,
) (*LLMResponse, error) {
	body, err := c.buildRequest(req, true)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Post(anthropicMessagesPath)
	if err != nil {
		return nil, Classify(ProviderAnthropic, fmt.Errorf("anthropic stream request failed: %w", err))
	}
	raw := resp.RawBody()
	defer raw.Close()
	if resp.StatusCode() >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(raw, 4096))
		var apiErr anthropicErrorBody
		_ = json.Unmarshal(data, &apiErr)
		return nil, statusError(resp.StatusCode(), &apiErr, string(data))
	}
	return readAnthropicStream(ctx, raw, onChunk)
}

func (c *AnthropicClient) Close() error { return nil }

func statusError(status int, apiErr *anthropicErrorBody, fallback string) error {
	msg := strings.TrimSpace(fallback)
	if apiErr != nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Type + ": " + apiErr.Error.Message
	}
	return NewError(status, msg, ProviderAnthropic, nil)
}

func (c *AnthropicClient) buildRequest(req *LLMRequest, stream bool) (*anthropicRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request must not be nil")
	}
	if err := ValidateConversation(req.Messages); err != nil {
		return nil, err
	}
	model := req.Options.Model
	if model == "" {
		model = c.model
	}
	maxTokens := int(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	out := &anthropicRequest{
		Model:     model,
		System:    req.SystemPrompt,
		MaxTokens: maxTokens,
		Stream:    stream,
		Messages:  convertToAnthropic(req.Messages),
	}
	if req.Options.Temperature > 0 {
		t := req.Options.Temperature
		out.Temperature = &t
	}
	if len(req.Tools) > 0 {
		out.Tools = make([]anthropicTool, 0, len(req.Tools))
		for _, tool := range req.Tools {
			params := tool.Parameters
			if params == nil {
				params = map[string]any{"type": "object"}
			}
			out.Tools = append(out.Tools, anthropicTool{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: params,
			})
		}
		out.ToolChoice = buildToolChoice(req.Options)
	}
	return out, nil
}

func buildToolChoice(opts CallOptions) *anthropicToolChoice {
	switch opts.ToolChoice {
	case "", ToolChoiceAuto:
		return &anthropicToolChoice{Type: "auto", DisableParallelToolUse: opts.DisableParallelToolUse}
	case ToolChoiceNone:
		return &anthropicToolChoice{Type: "none"}
	case ToolChoiceAny:
		return &anthropicToolChoice{Type: "any", DisableParallelToolUse: opts.DisableParallelToolUse}
	default:
		return &anthropicToolChoice{
			Type:                   "tool",
			Name:                   opts.ToolChoice,
			DisableParallelToolUse: opts.DisableParallelToolUse,
		}
	}
}

// convertToAnthropic maps tool messages to user turns holding tool_result blocks.
func convertToAnthropic(messages []Message) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			var blocks []anthropicContent
			if msg.Content != "" {
				blocks = append(blocks, anthropicContent{Type: "text", Text: msg.Content})
			}
			for i, tc := range msg.ToolCalls {
				input := tc.Arguments
				if len(strings.TrimSpace(string(input))) == 0 {
					input = json.RawMessage(`{}`)
				}
				id := tc.ID
				if id == "" {
					id = fmt.Sprintf("toolu_%s_%d", tc.Name, i)
				}
				blocks = append(blocks, anthropicContent{Type: "tool_use", ID: id, Name: tc.Name, Input: input})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropicMessage{Role: RoleAssistant, Content: blocks})
		case RoleTool:
			blocks := make([]anthropicContent, 0, len(msg.ToolResults))
			for _, tr := range msg.ToolResults {
				blocks = append(blocks, anthropicContent{
					Type:      "tool_result",
					ToolUseID: tr.ID,
					Content:   tr.Content,
					IsError:   tr.IsError,
				})
			}
			out = append(out, anthropicMessage{Role: RoleUser, Content: blocks})
		default:
			out = append(out, anthropicMessage{
				Role:    RoleUser,
				Content: []anthropicContent{{Type: "text", Text: msg.Content}},
			})
		}
	}
	return out
}

func convertAnthropicResponse(resp *anthropicResponse) *LLMResponse {
	out := &LLMResponse{
		StopReason: StopReason(resp.StopReason),
		Usage: &Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			args := block.Input
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		}
	}
	out.Content = text.String()
	return out
}

func readAnthropicStream(ctx context.Context, body io.Reader, onChunk StreamHandler) (*LLMResponse, error) {
	log := logger.FromContext(ctx)
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		text        strings.Builder
		toolCalls   []ToolCall
		currentTool *anthropicContent
		toolJSON    strings.Builder
		stopReason  string
		usage       anthropicUsage
	)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}
		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			log.Debug("Skipping malformed stream event", "error", err)
			continue
		}
		switch event.Type {
		case "message_start":
			if event.Message != nil {
				usage = event.Message.Usage
			}
		case "content_block_start":
			if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
				block := *event.ContentBlock
				currentTool = &block
				toolJSON.Reset()
			}
		case "content_block_delta":
			if event.Delta == nil {
				continue
			}
			switch event.Delta.Type {
			case "text_delta":
				text.WriteString(event.Delta.Text)
				if onChunk != nil && event.Delta.Text != "" {
					if err := onChunk(event.Delta.Text); err != nil {
						return nil, err
					}
				}
			case "input_json_delta":
				toolJSON.WriteString(event.Delta.PartialJSON)
			}
		case "content_block_stop":
			if currentTool == nil {
				continue
			}
			args := json.RawMessage(`{}`)
			if toolJSON.Len() > 0 {
				args = json.RawMessage(toolJSON.String())
			}
			toolCalls = append(toolCalls, ToolCall{ID: currentTool.ID, Name: currentTool.Name, Arguments: args})
			currentTool = nil
		case "message_delta":
			if event.Delta != nil && event.Delta.StopReason != "" {
				stopReason = event.Delta.StopReason
			}
			if event.Usage != nil {
				usage.OutputTokens = event.Usage.OutputTokens
			}
		case "error":
			msg := "stream error"
			if event.Error != nil {
				msg = event.Error.Type + ": " + event.Error.Message
			}
			return nil, Classify(ProviderAnthropic, fmt.Errorf("anthropic %s", msg))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, Classify(ProviderAnthropic, fmt.Errorf("read stream: %w", err))
	}
	return &LLMResponse{
		Content:    text.String(),
		ToolCalls:  toolCalls,
		StopReason: StopReason(stopReason),
		Usage: &Usage{
			PromptTokens:     usage.InputTokens,
			CompletionTokens: usage.OutputTokens,
			TotalTokens:      usage.InputTokens + usage.OutputTokens,
		},
	}, nil
}
