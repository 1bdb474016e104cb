package llmadapter

import (
	"context"
	"encoding/json"
	"fmt"
)

// Role constants for message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Tool choice modes understood by every adapter.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceNone = "none"
	ToolChoiceAny  = "any"
)

type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	StopSequence  StopReason = "stop_sequence"
)

// LLMRequest represents a request to the LLM, independent of provider
type LLMRequest struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
	Options      CallOptions
}

// Message represents a conversation message
type Message struct {
	Role    string
	Content string
	// ToolCalls carries tool calls emitted by the assistant.
	// Constraint: only messages with Role == "assistant" may contain ToolCalls.
	ToolCalls []ToolCall
	// ToolResults carries tool responses provided by the runtime.
	// Constraint: only messages with Role == "tool" may contain ToolResults.
	ToolResults []ToolResult
}

// ToolDefinition represents a tool available to the LLM
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// ToolResult answers one ToolCall. Failed executions travel on the same
// channel with IsError set.
type ToolResult struct {
	ID      string
	Name    string
	Content string
	IsError bool
}

type CallOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int32
	// ToolChoice is "auto", "none", "any" or a specific tool name.
	ToolChoice             string
	DisableParallelToolUse bool
}

type LLMResponse struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason StopReason
	Usage      *Usage
}

// ToolCall represents a tool invocation request from the LLM
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamHandler receives text deltas as they arrive. Returning an error
// aborts the stream.
type StreamHandler func(chunk string) error

// LLMClient is the main interface for LLM interactions
type LLMClient interface {
	GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
	// StreamContent behaves like GenerateContent but reports text deltas to
	// onChunk before returning the assembled response.
	StreamContent(ctx context.Context, req *LLMRequest, onChunk StreamHandler) (*LLMResponse, error)
	Close() error
}

// ValidateConversation asserts role-specific constraints for messages:
// only assistant messages carry ToolCalls and only tool messages carry ToolResults.
func ValidateConversation(messages []Message) error {
	for i, m := range messages {
		if len(m.ToolCalls) > 0 && m.Role != RoleAssistant {
			return fmt.Errorf("message[%d] role %q cannot contain ToolCalls", i, m.Role)
		}
		if len(m.ToolResults) > 0 && m.Role != RoleTool {
			return fmt.Errorf("message[%d] role %q cannot contain ToolResults", i, m.Role)
		}
	}
	return nil
}
