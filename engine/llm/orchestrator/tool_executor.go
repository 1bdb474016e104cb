package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/repcoach/repcoach/engine/core"
	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
	"github.com/repcoach/repcoach/engine/llm/telemetry"
	"github.com/repcoach/repcoach/engine/llm/tool"
	"github.com/repcoach/repcoach/pkg/logger"
)

type toolExecutor struct {
	registry *tool.Registry
}

type executionBatch struct {
	results    []llmadapter.ToolResult
	executions []ToolExecution
	succeeded  bool
	fatal      error
}

// Execute runs calls one at a time in the order the model emitted them.
// A fatal error stops the batch. Once a call succeeds, the remaining calls
// are answered with an error result without running.
func (e *toolExecutor) Execute(ctx context.Context, calls []llmadapter.ToolCall) executionBatch {
	log := logger.FromContext(ctx)
	var batch executionBatch
	for _, call := range calls {
		exec := ToolExecution{ToolName: call.Name, CallID: call.ID, Input: cloneRaw(call.Arguments)}
		result := llmadapter.ToolResult{ID: call.ID, Name: call.Name}
		if batch.succeeded {
			log.Warn("Skipping tool call after a successful execution", "tool_name", call.Name, "tool_call_id", call.ID)
			exec.Error = skippedToolMessage
			result.Content = exec.Error
			result.IsError = true
			recordToolExecution(ctx, call.Name, outcomeSkipped, 0)
			batch.append(exec, result)
			continue
		}
		def, found := e.registry.Find(call.Name)
		if !found {
			log.Warn("Model requested unknown tool", "tool_name", call.Name, "tool_call_id", call.ID)
			exec.Error = toolNotFoundMessage(call.Name)
			result.Content = exec.Error
			result.IsError = true
			recordToolExecution(ctx, call.Name, outcomeNotFound, 0)
			batch.append(exec, result)
			continue
		}
		started := time.Now()
		out, err := def.Call(ctx, call.Arguments)
		elapsed := time.Since(started)
		if err != nil {
			exec.Error = err.Error()
			result.Content = exec.Error
			result.IsError = true
			log.Debug(
				"Tool execution failed",
				"tool_name", call.Name,
				"tool_call_id", call.ID,
				"error", core.RedactError(err),
			)
			telemetry.Step(ctx, "tool_failed", "tool", call.Name, "duration_ms", elapsed.Milliseconds())
			recordToolExecution(ctx, call.Name, outcomeError, elapsed)
			batch.append(exec, result)
			if tool.IsFatal(err) {
				batch.fatal = err
				return batch
			}
			continue
		}
		exec.Result = asRawJSON(out)
		result.Content = out
		batch.succeeded = true
		log.Debug("Tool execution succeeded", "tool_name", call.Name, "tool_call_id", call.ID)
		telemetry.Step(ctx, "tool_succeeded", "tool", call.Name, "duration_ms", elapsed.Milliseconds())
		recordToolExecution(ctx, call.Name, outcomeSuccess, elapsed)
		batch.append(exec, result)
	}
	return batch
}

func (b *executionBatch) append(exec ToolExecution, result llmadapter.ToolResult) {
	b.executions = append(b.executions, exec)
	b.results = append(b.results, result)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

// asRawJSON keeps JSON output as is and quotes anything else.
func asRawJSON(out string) json.RawMessage {
	if json.Valid([]byte(out)) {
		return json.RawMessage(out)
	}
	quoted, err := json.Marshal(out)
	if err != nil {
		return nil
	}
	return quoted
}
