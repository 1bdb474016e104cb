package orchestrator

import (
	"context"
	"encoding/json"

	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
	"github.com/repcoach/repcoach/engine/llm/tool"
)

// Caller performs a single model call. The gateway satisfies it with its
// retry policy applied.
type Caller interface {
	Complete(ctx context.Context, req *llmadapter.LLMRequest) (*llmadapter.LLMResponse, error)
}

// Request is one coaching turn handed to the loop.
type Request struct {
	SystemPrompt string
	Messages     []llmadapter.Message
	Tools        *tool.Registry
}

// ToolExecution records one tool invocation. Exactly one of Result and Error is set.
type ToolExecution struct {
	ToolName string          `json:"toolName"`
	CallID   string          `json:"callId"`
	Input    json.RawMessage `json:"input,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func (e *ToolExecution) Succeeded() bool { return e.Error == "" }

// Result is the outcome of a completed loop.
type Result struct {
	Text           string
	ToolExecutions []ToolExecution
	Rounds         int
}
