package llmadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// LangChainAdapter adapts a langchaingo model to LLMClient.
type LangChainAdapter struct {
	model    llms.Model
	provider string
	name     string
}

func NewLangChainAdapter(model llms.Model, provider, modelName string) *LangChainAdapter {
	return &LangChainAdapter{model: model, provider: provider, name: modelName}
}

func newOpenAIModel(model, apiKey, baseURL string) (llms.Model, error) {
	opts := []openai.Option{openai.WithModel(model)}
	if apiKey != "" {
		opts = append(opts, openai.WithToken(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	return openai.New(opts...)
}

func newOllamaModel(model, baseURL string) (llms.Model, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, ollama.WithServerURL(baseURL))
	}
	return ollama.New(opts...)
}

func (a *LangChainAdapter) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	return a.generate(ctx, req, nil)
}

func (a *LangChainAdapter) StreamContent(
	ctx context.Context,
	req *LLMRequest,
	onChunk StreamHandler,
) (*LLMResponse, error) {
	return a.generate(ctx, req, onChunk)
}

func (a *LangChainAdapter) Close() error { return nil }

func (a *LangChainAdapter) generate(
	ctx context.Context,
	req *LLMRequest,
	onChunk StreamHandler,
) (*LLMResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request must not be nil")
	}
	if err := ValidateConversation(req.Messages); err != nil {
		return nil, err
	}
	options := a.buildCallOptions(req)
	if onChunk != nil {
		options = append(options, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			return onChunk(string(chunk))
		}))
	}
	resp, err := a.model.GenerateContent(ctx, a.convertMessages(req), options...)
	if err != nil {
		return nil, Classify(a.provider, fmt.Errorf("%s generation failed: %w", a.provider, err))
	}
	return a.convertResponse(resp)
}

func (a *LangChainAdapter) convertMessages(req *LLMRequest) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleAssistant:
			parts := make([]llms.ContentPart, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				parts = append(parts, llms.TextContent{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			messages = append(messages, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts})
		case RoleTool:
			// one response per message; openai rejects grouped tool parts
			for _, tr := range msg.ToolResults {
				content := tr.Content
				if tr.IsError {
					content = "Error: " + content
				}
				messages = append(messages, llms.MessageContent{
					Role: llms.ChatMessageTypeTool,
					Parts: []llms.ContentPart{llms.ToolCallResponse{
						ToolCallID: tr.ID,
						Name:       tr.Name,
						Content:    content,
					}},
				})
			}
		default:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		}
	}
	return messages
}

func (a *LangChainAdapter) buildCallOptions(req *LLMRequest) []llms.CallOption {
	var options []llms.CallOption
	if req.Options.Model != "" {
		options = append(options, llms.WithModel(req.Options.Model))
	}
	if req.Options.Temperature > 0 {
		options = append(options, llms.WithTemperature(req.Options.Temperature))
	}
	if req.Options.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(int(req.Options.MaxTokens)))
	}
	if len(req.Tools) > 0 {
		options = append(options, llms.WithTools(a.convertTools(req.Tools)))
		switch req.Options.ToolChoice {
		case "", ToolChoiceAuto:
			options = append(options, llms.WithToolChoice("auto"))
		case ToolChoiceNone:
			options = append(options, llms.WithToolChoice("none"))
		case ToolChoiceAny:
			options = append(options, llms.WithToolChoice("required"))
		default:
			options = append(options, llms.WithToolChoice(llms.ToolChoice{
				Type:     "function",
				Function: &llms.FunctionReference{Name: req.Options.ToolChoice},
			}))
		}
	}
	return options
}

func (a *LangChainAdapter) convertTools(tools []ToolDefinition) []llms.Tool {
	llmTools := make([]llms.Tool, 0, len(tools))
	for _, tool := range tools {
		llmTools = append(llmTools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return llmTools
}

func (a *LangChainAdapter) convertResponse(resp *llms.ContentResponse) (*LLMResponse, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from %s", a.provider)
	}
	choice := resp.Choices[0]
	response := &LLMResponse{
		Content:    choice.Content,
		StopReason: mapStopReason(choice.StopReason),
		Usage:      usageFromGenerationInfo(choice.GenerationInfo),
	}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		args := json.RawMessage(tc.FunctionCall.Arguments)
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		response.ToolCalls = append(response.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: args,
		})
	}
	if len(response.ToolCalls) > 0 && response.StopReason == StopEndTurn {
		response.StopReason = StopToolUse
	}
	return response, nil
}

func mapStopReason(reason string) StopReason {
	switch reason {
	case "tool_calls", "function_call", "tool_use":
		return StopToolUse
	case "length", "max_tokens":
		return StopMaxTokens
	case "stop_sequence":
		return StopSequence
	default:
		return StopEndTurn
	}
}

func usageFromGenerationInfo(info map[string]any) *Usage {
	if info == nil {
		return nil
	}
	prompt, okPrompt := intFrom(info["PromptTokens"])
	completion, okCompletion := intFrom(info["CompletionTokens"])
	if !okPrompt && !okCompletion {
		return nil
	}
	total, ok := intFrom(info["TotalTokens"])
	if !ok {
		total = prompt + completion
	}
	return &Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}

func intFrom(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
