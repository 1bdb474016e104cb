package llmadapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (f *fakeModel) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.opts.StreamingFunc != nil && len(f.resp.Choices) > 0 {
		if err := f.opts.StreamingFunc(ctx, []byte(f.resp.Choices[0].Content)); err != nil {
			return nil, err
		}
	}
	return f.resp, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLangChainAdapter(t *testing.T) {
	t.Run("Should convert tool conversations and parse tool calls", func(t *testing.T) {
		model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
			StopReason: "tool_calls",
			ToolCalls: []llms.ToolCall{{
				ID:           "call_2",
				Type:         "function",
				FunctionCall: &llms.FunctionCall{Name: "modify_program", Arguments: `{"reason":"r"}`},
			}},
			GenerationInfo: map[string]any{"PromptTokens": 4, "CompletionTokens": 2},
		}}}}
		adapter := NewLangChainAdapter(model, ProviderOpenAI, "gpt-test")
		resp, err := adapter.GenerateContent(t.Context(), &LLMRequest{
			SystemPrompt: "sys",
			Messages: []Message{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Name: "modify_program"}}},
				{Role: RoleTool, ToolResults: []ToolResult{
					{ID: "call_1", Name: "modify_program", Content: "nope", IsError: true},
				}},
			},
			Tools:   []ToolDefinition{{Name: "modify_program"}},
			Options: CallOptions{ToolChoice: ToolChoiceAny},
		})
		require.NoError(t, err)
		assert.Equal(t, StopToolUse, resp.StopReason)
		require.Len(t, resp.ToolCalls, 1)
		assert.Equal(t, "call_2", resp.ToolCalls[0].ID)
		assert.Equal(t, 6, resp.Usage.TotalTokens)

		require.Len(t, model.messages, 4)
		assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
		assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
		toolResp, ok := model.messages[3].Parts[0].(llms.ToolCallResponse)
		require.True(t, ok)
		assert.Equal(t, "Error: nope", toolResp.Content)
		assert.Equal(t, "required", model.opts.ToolChoice)
		assert.Len(t, model.opts.Tools, 1)
	})

	t.Run("Should forward streaming chunks", func(t *testing.T) {
		model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "hello", StopReason: "stop"}}}}
		adapter := NewLangChainAdapter(model, ProviderOllama, "llama")
		var got string
		resp, err := adapter.StreamContent(t.Context(),
			&LLMRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}},
			func(chunk string) error {
				got += chunk
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, "hello", got)
		assert.Equal(t, StopEndTurn, resp.StopReason)
		assert.Nil(t, resp.Usage)
	})

	t.Run("Should classify provider errors", func(t *testing.T) {
		model := &fakeModel{err: errors.New("API returned unexpected status code: 503")}
		adapter := NewLangChainAdapter(model, ProviderOpenAI, "gpt-test")
		_, err := adapter.GenerateContent(t.Context(), &LLMRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
		llmErr, ok := IsLLMError(err)
		require.True(t, ok)
		assert.Equal(t, ErrCodeServiceUnavailable, llmErr.Code)
	})
}

func TestMockClient(t *testing.T) {
	t.Run("Should replay steps then fall back", func(t *testing.T) {
		boom := errors.New("boom")
		client := NewMockClient(Text("first"), Fail(boom))
		resp, err := client.GenerateContent(t.Context(), &LLMRequest{})
		require.NoError(t, err)
		assert.Equal(t, "first", resp.Content)
		_, err = client.GenerateContent(t.Context(), &LLMRequest{})
		assert.ErrorIs(t, err, boom)
		resp, err = client.GenerateContent(t.Context(), &LLMRequest{})
		require.NoError(t, err)
		assert.Equal(t, "Mock response", resp.Content)
		assert.Len(t, client.Requests(), 3)
		assert.Zero(t, client.Remaining())
	})
}
