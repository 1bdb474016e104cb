package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repcoach/repcoach/engine/core"
	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
	"github.com/repcoach/repcoach/engine/llm/tool"
	"github.com/repcoach/repcoach/engine/schema"
)

type mockCaller struct {
	client *llmadapter.MockClient
}

func (m *mockCaller) Complete(ctx context.Context, req *llmadapter.LLMRequest) (*llmadapter.LLMResponse, error) {
	return m.client.GenerateContent(ctx, req)
}

func newCaller(steps ...llmadapter.MockStep) (*mockCaller, *llmadapter.MockClient) {
	client := llmadapter.NewMockClient(steps...)
	return &mockCaller{client: client}, client
}

func call(id, name, args string) llmadapter.ToolCall {
	return llmadapter.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func saveTool(t *testing.T, fail func(n int) error) (*tool.Registry, *int) {
	t.Helper()
	calls := 0
	registry, err := tool.NewRegistry(&tool.Definition{
		Name: "save_program",
		InputSchema: schema.Schema{
			"type":     "object",
			"required": []any{"name"},
		},
		Execute: func(_ context.Context, input map[string]any) (any, error) {
			calls++
			if fail != nil {
				if err := fail(calls); err != nil {
					return nil, err
				}
			}
			return map[string]any{"saved": input["name"]}, nil
		},
	})
	require.NoError(t, err)
	return registry, &calls
}

func run(t *testing.T, caller Caller, registry *tool.Registry) (*Result, error) {
	t.Helper()
	o, err := New(caller, Config{})
	require.NoError(t, err)
	return o.Run(t.Context(), Request{
		SystemPrompt: "coach",
		Messages:     []llmadapter.Message{{Role: llmadapter.RoleUser, Content: "make me a plan"}},
		Tools:        registry,
	})
}

func TestOrchestrator_Run(t *testing.T) {
	t.Run("Should return plain text when no tool is requested", func(t *testing.T) {
		registry, calls := saveTool(t, nil)
		caller, client := newCaller(llmadapter.Text("How many days can you train?"))
		res, err := run(t, caller, registry)
		require.NoError(t, err)
		assert.Equal(t, "How many days can you train?", res.Text)
		assert.Equal(t, 1, res.Rounds)
		assert.Empty(t, res.ToolExecutions)
		assert.Zero(t, *calls)
		reqs := client.Requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, llmadapter.ToolChoiceAuto, reqs[0].Options.ToolChoice)
		assert.True(t, reqs[0].Options.DisableParallelToolUse)
		assert.Len(t, reqs[0].Tools, 1)
	})

	t.Run("Should make one tools disabled call after a tool succeeds", func(t *testing.T) {
		registry, calls := saveTool(t, nil)
		caller, client := newCaller(
			llmadapter.Calls(call("c1", "save_program", `{"name":"PPL"}`)),
			llmadapter.Text("Your plan is saved."),
			llmadapter.Text("never requested"),
		)
		res, err := run(t, caller, registry)
		require.NoError(t, err)
		assert.Equal(t, "Your plan is saved.", res.Text)
		assert.Equal(t, 1, *calls)
		require.Len(t, res.ToolExecutions, 1)
		exec := res.ToolExecutions[0]
		assert.True(t, exec.Succeeded())
		assert.Equal(t, "c1", exec.CallID)
		assert.JSONEq(t, `{"saved":"PPL"}`, string(exec.Result))

		reqs := client.Requests()
		require.Len(t, reqs, 2)
		final := reqs[1]
		assert.Equal(t, llmadapter.ToolChoiceNone, final.Options.ToolChoice)
		require.Len(t, final.Messages, 3)
		assert.Equal(t, llmadapter.RoleAssistant, final.Messages[1].Role)
		assert.Equal(t, llmadapter.RoleTool, final.Messages[2].Role)
		assert.False(t, final.Messages[2].ToolResults[0].IsError)
		assert.Equal(t, 1, client.Remaining())
	})

	t.Run("Should report unknown tools back to the model", func(t *testing.T) {
		registry, _ := saveTool(t, nil)
		caller, client := newCaller(
			llmadapter.Calls(call("c1", "delete_program", `{}`)),
			llmadapter.Text("I can only save programs."),
		)
		res, err := run(t, caller, registry)
		require.NoError(t, err)
		assert.Equal(t, "I can only save programs.", res.Text)
		require.Len(t, res.ToolExecutions, 1)
		assert.Equal(t, "Unknown tool: delete_program", res.ToolExecutions[0].Error)
		second := client.Requests()[1]
		assert.Equal(t, llmadapter.ToolChoiceAuto, second.Options.ToolChoice)
		assert.True(t, second.Messages[2].ToolResults[0].IsError)
	})

	t.Run("Should let the model retry after a failed tool call", func(t *testing.T) {
		registry, calls := saveTool(t, nil)
		caller, client := newCaller(
			llmadapter.Calls(call("c1", "save_program", `{}`)),
			llmadapter.Calls(call("c2", "save_program", `{"name":"Fixed"}`)),
			llmadapter.Text("Saved after fixing."),
		)
		res, err := run(t, caller, registry)
		require.NoError(t, err)
		assert.Equal(t, "Saved after fixing.", res.Text)
		assert.Equal(t, 1, *calls)
		require.Len(t, res.ToolExecutions, 2)
		assert.Contains(t, res.ToolExecutions[0].Error, "TOOL_INVALID_INPUT")
		assert.True(t, res.ToolExecutions[1].Succeeded())
		assert.Equal(t, 2, res.Rounds)
		assert.Len(t, client.Requests(), 3)
	})

	t.Run("Should fail once the round cap is reached", func(t *testing.T) {
		registry, _ := saveTool(t, nil)
		steps := make([]llmadapter.MockStep, 0, 7)
		for range 7 {
			steps = append(steps, llmadapter.Calls(call("c", "save_program", `{}`)))
		}
		caller, client := newCaller(steps...)
		_, err := run(t, caller, registry)
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodeLoopExhausted))
		assert.ErrorIs(t, err, ErrLoopExhausted)
		assert.Len(t, client.Requests(), DefaultMaxRounds)
	})

	t.Run("Should fail on tool use stop without tool calls", func(t *testing.T) {
		registry, _ := saveTool(t, nil)
		caller, _ := newCaller(llmadapter.MockStep{
			Response: &llmadapter.LLMResponse{StopReason: llmadapter.StopToolUse},
		})
		_, err := run(t, caller, registry)
		assert.True(t, core.HasCode(err, core.CodeProtocolViolation))
	})

	t.Run("Should abort the turn on fatal tool errors", func(t *testing.T) {
		notFound := core.NewError(errors.New("program not found"), core.CodeNotFound, nil)
		registry, _ := saveTool(t, func(int) error { return notFound })
		caller, client := newCaller(
			llmadapter.Calls(call("c1", "save_program", `{"name":"x"}`)),
			llmadapter.Text("unused"),
		)
		_, err := run(t, caller, registry)
		assert.ErrorIs(t, err, notFound)
		assert.Len(t, client.Requests(), 1)
	})

	t.Run("Should keep the tool result when the summary call fails", func(t *testing.T) {
		registry, _ := saveTool(t, nil)
		caller, _ := newCaller(
			llmadapter.Calls(call("c1", "save_program", `{"name":"x"}`)),
			llmadapter.Fail(errors.New("upstream closed")),
		)
		res, err := run(t, caller, registry)
		require.NoError(t, err)
		assert.Empty(t, res.Text)
		require.Len(t, res.ToolExecutions, 1)
		assert.True(t, res.ToolExecutions[0].Succeeded())
	})

	t.Run("Should propagate model errors", func(t *testing.T) {
		registry, _ := saveTool(t, nil)
		boom := errors.New("bad request")
		caller, _ := newCaller(llmadapter.Fail(boom))
		_, err := run(t, caller, registry)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Should run sequentially in emitted order", func(t *testing.T) {
		registry, calls := saveTool(t, func(n int) error {
			if n == 1 {
				return errors.New("first write refused")
			}
			return nil
		})
		caller, _ := newCaller(
			llmadapter.Calls(
				call("a", "save_program", `{"name":"one"}`),
				call("b", "save_program", `{"name":"two"}`),
			),
			llmadapter.Text("done"),
		)
		res, err := run(t, caller, registry)
		require.NoError(t, err)
		assert.Equal(t, 2, *calls)
		require.Len(t, res.ToolExecutions, 2)
		assert.Equal(t, "a", res.ToolExecutions[0].CallID)
		assert.False(t, res.ToolExecutions[0].Succeeded())
		assert.True(t, res.ToolExecutions[1].Succeeded())
	})

	t.Run("Should execute at most one successful call per turn", func(t *testing.T) {
		notFound := core.NewError(errors.New("program not found"), core.CodeNotFound, nil)
		registry, calls := saveTool(t, func(n int) error {
			if n > 1 {
				return notFound
			}
			return nil
		})
		caller, client := newCaller(
			llmadapter.Calls(
				call("a", "save_program", `{"name":"one"}`),
				call("b", "save_program", `{"name":"two"}`),
				call("c", "save_program", `{"name":"three"}`),
			),
			llmadapter.Text("done"),
		)
		res, err := run(t, caller, registry)
		require.NoError(t, err)
		assert.Equal(t, "done", res.Text)
		assert.Equal(t, 1, *calls)
		require.Len(t, res.ToolExecutions, 3)
		assert.True(t, res.ToolExecutions[0].Succeeded())
		for _, exec := range res.ToolExecutions[1:] {
			assert.False(t, exec.Succeeded())
			assert.Equal(t, skippedToolMessage, exec.Error)
		}

		reqs := client.Requests()
		require.Len(t, reqs, 2)
		assert.Equal(t, llmadapter.ToolChoiceNone, reqs[1].Options.ToolChoice)
		results := reqs[1].Messages[2].ToolResults
		require.Len(t, results, 3)
		assert.False(t, results[0].IsError)
		assert.True(t, results[1].IsError)
		assert.True(t, results[2].IsError)
	})
}

func TestNew(t *testing.T) {
	t.Run("Should require a caller", func(t *testing.T) {
		_, err := New(nil, Config{})
		assert.Error(t, err)
	})
}
