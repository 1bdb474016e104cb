package llmadapter

import (
	"context"
	"slices"
	"sync"
)

const ProviderMock = "mock"

// MockStep is one scripted reply. A non-nil Err is returned instead of Response.
type MockStep struct {
	Response *LLMResponse
	Err      error
}

// MockClient replays scripted steps in order and answers with Fallback once
// the script is exhausted. It records every request it receives.
type MockClient struct {
	mu       sync.Mutex
	steps    []MockStep
	requests []LLMRequest
	Fallback string
}

func NewMockClient(steps ...MockStep) *MockClient {
	return &MockClient{steps: steps, Fallback: "Mock response"}
}

// Text returns a step answering with plain text.
func Text(content string) MockStep {
	return MockStep{Response: &LLMResponse{Content: content, StopReason: StopEndTurn}}
}

// Calls returns a step requesting the given tool calls.
func Calls(calls ...ToolCall) MockStep {
	return MockStep{Response: &LLMResponse{ToolCalls: calls, StopReason: StopToolUse}}
}

// Fail returns a step failing with err.
func Fail(err error) MockStep {
	return MockStep{Err: err}
}

func (m *MockClient) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if req != nil {
		m.requests = append(m.requests, snapshotRequest(req))
	}
	if len(m.steps) == 0 {
		return &LLMResponse{Content: m.Fallback, StopReason: StopEndTurn}, nil
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	resp := *step.Response
	return &resp, nil
}

func (m *MockClient) StreamContent(
	ctx context.Context,
	req *LLMRequest,
	onChunk StreamHandler,
) (*LLMResponse, error) {
	resp, err := m.GenerateContent(ctx, req)
	if err != nil {
		return nil, err
	}
	if onChunk != nil && resp.Content != "" {
		if err := onChunk(resp.Content); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (m *MockClient) Close() error { return nil }

// Requests returns the requests seen so far.
func (m *MockClient) Requests() []LLMRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requests)
}

// Remaining reports how many scripted steps are left.
func (m *MockClient) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}

func snapshotRequest(req *LLMRequest) LLMRequest {
	out := *req
	out.Messages = slices.Clone(req.Messages)
	out.Tools = slices.Clone(req.Tools)
	return out
}
