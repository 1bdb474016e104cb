package llmadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) (*AnthropicClient, *[]string) {
	t.Helper()
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		assert.Equal(t, anthropicMessagesPath, r.URL.Path)
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	client, err := NewAnthropicClient(AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "claude-test"})
	require.NoError(t, err)
	return client, &bodies
}

func TestAnthropicClient_GenerateContent(t *testing.T) {
	t.Run("Should send tool results with is_error and parse tool use", func(t *testing.T) {
		client, bodies := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"msg_1","model":"claude-test","stop_reason":"tool_use",
				"content":[{"type":"text","text":"Saving."},
				{"type":"tool_use","id":"toolu_2","name":"create_program","input":{"reason":"x"}}],
				"usage":{"input_tokens":10,"output_tokens":5}}`)
		})
		resp, err := client.GenerateContent(t.Context(), &LLMRequest{
			SystemPrompt: "coach",
			Messages: []Message{
				{Role: RoleUser, Content: "build me a plan"},
				{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "toolu_1", Name: "create_program"}}},
				{Role: RoleTool, ToolResults: []ToolResult{{ID: "toolu_1", Content: "bad input", IsError: true}}},
			},
			Tools:   []ToolDefinition{{Name: "create_program", Description: "create"}},
			Options: CallOptions{ToolChoice: ToolChoiceAuto, DisableParallelToolUse: true},
		})
		require.NoError(t, err)
		assert.Equal(t, "Saving.", resp.Content)
		assert.Equal(t, StopToolUse, resp.StopReason)
		require.Len(t, resp.ToolCalls, 1)
		assert.Equal(t, "toolu_2", resp.ToolCalls[0].ID)
		assert.JSONEq(t, `{"reason":"x"}`, string(resp.ToolCalls[0].Arguments))
		assert.Equal(t, 15, resp.Usage.TotalTokens)

		require.Len(t, *bodies, 1)
		body := (*bodies)[0]
		assert.Equal(t, "claude-test", gjson.Get(body, "model").String())
		assert.Equal(t, "coach", gjson.Get(body, "system").String())
		assert.Equal(t, "auto", gjson.Get(body, "tool_choice.type").String())
		assert.True(t, gjson.Get(body, "tool_choice.disable_parallel_tool_use").Bool())
		assert.Equal(t, "object", gjson.Get(body, "tools.0.input_schema.type").String())
		assert.Equal(t, "{}", gjson.Get(body, "messages.1.content.0.input").Raw)
		assert.Equal(t, "user", gjson.Get(body, "messages.2.role").String())
		assert.Equal(t, "tool_result", gjson.Get(body, "messages.2.content.0.type").String())
		assert.True(t, gjson.Get(body, "messages.2.content.0.is_error").Bool())
	})

	t.Run("Should send tool choice none without the parallel flag", func(t *testing.T) {
		client, bodies := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"content":[{"type":"text","text":"done"}],"stop_reason":"end_turn"}`)
		})
		_, err := client.GenerateContent(t.Context(), &LLMRequest{
			Messages: []Message{{Role: RoleUser, Content: "hi"}},
			Tools:    []ToolDefinition{{Name: "create_program"}},
			Options:  CallOptions{ToolChoice: ToolChoiceNone, DisableParallelToolUse: true},
		})
		require.NoError(t, err)
		assert.Equal(t, "none", gjson.Get((*bodies)[0], "tool_choice.type").String())
		assert.False(t, gjson.Get((*bodies)[0], "tool_choice.disable_parallel_tool_use").Exists())
	})

	t.Run("Should classify overloaded responses as retryable", func(t *testing.T) {
		client, _ := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(529)
			fmt.Fprint(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
		})
		_, err := client.GenerateContent(t.Context(), &LLMRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
		require.Error(t, err)
		llmErr, ok := IsLLMError(err)
		require.True(t, ok)
		assert.Equal(t, ErrCodeCapacityError, llmErr.Code)
		assert.True(t, llmErr.Retryable())
		assert.Contains(t, err.Error(), "Overloaded")
	})

	t.Run("Should not retry bad requests", func(t *testing.T) {
		client, _ := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`)
		})
		_, err := client.GenerateContent(t.Context(), &LLMRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
		llmErr, ok := IsLLMError(err)
		require.True(t, ok)
		assert.Equal(t, ErrCodeBadRequest, llmErr.Code)
		assert.False(t, llmErr.Retryable())
	})

	t.Run("Should reject tool calls on user messages", func(t *testing.T) {
		client, bodies := newTestAnthropic(t, func(http.ResponseWriter, *http.Request) {})
		_, err := client.GenerateContent(t.Context(), &LLMRequest{
			Messages: []Message{{Role: RoleUser, ToolCalls: []ToolCall{{Name: "x"}}}},
		})
		require.Error(t, err)
		assert.Empty(t, *bodies)
	})
}

func TestAnthropicClient_StreamContent(t *testing.T) {
	t.Run("Should assemble text and tool input from events", func(t *testing.T) {
		events := []string{
			`{"type":"message_start","message":{"usage":{"input_tokens":7}}}`,
			`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}`,
			`{"type":"content_block_stop","index":0}`,
			`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_9","name":"modify_program"}}`,
			`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"reason\":"}}`,
			`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"swap\"}"}}`,
			`{"type":"content_block_stop","index":1}`,
			`{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":3}}`,
			`{"type":"message_stop"}`,
		}
		client, bodies := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, e := range events {
				fmt.Fprintf(w, "event: x\ndata: %s\n\n", e)
			}
		})
		var chunks []string
		resp, err := client.StreamContent(t.Context(),
			&LLMRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}},
			func(chunk string) error {
				chunks = append(chunks, chunk)
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, []string{"Hel", "lo"}, chunks)
		assert.Equal(t, "Hello", resp.Content)
		assert.Equal(t, StopToolUse, resp.StopReason)
		require.Len(t, resp.ToolCalls, 1)
		assert.Equal(t, "modify_program", resp.ToolCalls[0].Name)
		var args map[string]string
		require.NoError(t, json.Unmarshal(resp.ToolCalls[0].Arguments, &args))
		assert.Equal(t, "swap", args["reason"])
		assert.Equal(t, 10, resp.Usage.TotalTokens)
		assert.True(t, gjson.Get((*bodies)[0], "stream").Bool())
	})

	t.Run("Should surface mid stream errors", func(t *testing.T) {
		client, _ := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "data: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
		})
		_, err := client.StreamContent(t.Context(),
			&LLMRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}}, nil)
		llmErr, ok := IsLLMError(err)
		require.True(t, ok)
		assert.True(t, llmErr.Retryable())
	})

	t.Run("Should stop when the handler fails", func(t *testing.T) {
		client, _ := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"a\"}}\n\n")
		})
		_, err := client.StreamContent(t.Context(),
			&LLMRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}},
			func(string) error { return io.ErrClosedPipe })
		assert.ErrorIs(t, err, io.ErrClosedPipe)
	})
}

func TestNewAnthropicClient(t *testing.T) {
	t.Run("Should require a key against the public endpoint", func(t *testing.T) {
		_, err := NewAnthropicClient(AnthropicConfig{Model: "claude"})
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "api key"))
	})
}
