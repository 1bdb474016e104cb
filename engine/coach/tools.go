package coach

import (
	"context"
	"fmt"
	"strings"

	"github.com/repcoach/repcoach/engine/core"
	"github.com/repcoach/repcoach/engine/llm/tool"
	"github.com/repcoach/repcoach/engine/program"
	"github.com/repcoach/repcoach/engine/schema"
)

const (
	ToolCreateProgram = "create_program"
	ToolModifyProgram = "modify_program"
)

const createProgramHint = "Complete Program JSON with id, name, description, startDate, schedule, and workouts. " +
	"dayOfWeek is Monday-based: 0=Mon..6=Sun. " +
	"You may also include dayName/workoutId/workoutName and they will be normalized."

const updatedProgramHint = "Full updated Program JSON preserving IDs for unchanged workouts/exercises whenever possible. " +
	"dayOfWeek is Monday-based: 0=Mon..6=Sun. " +
	"You may include dayName/workoutId/workoutName aliases and they will be normalized."

// newTools returns the tools for a conversation. Onboarding may only create
// and modification may only modify.
func newTools(kind ConversationType, m *mutator, programID string) (*tool.Registry, error) {
	if kind == ConversationOnboarding {
		return tool.NewRegistry(createProgramTool(m))
	}
	return tool.NewRegistry(modifyProgramTool(m, programID))
}

func createProgramTool(m *mutator) *tool.Definition {
	return &tool.Definition{
		Name:        ToolCreateProgram,
		Description: "Persist a brand-new workout program for this user after enough onboarding details are collected.",
		InputSchema: schema.Schema{
			"type": "object",
			"properties": map[string]any{
				"program": map[string]any{
					"type":        "object",
					"description": createProgramHint,
				},
				"reason": map[string]any{
					"type":        "string",
					"description": "Short reason explaining why this program fits the user.",
				},
			},
			"required": []any{"program"},
		},
		Execute: func(ctx context.Context, input map[string]any) (any, error) {
			p, err := parseToolProgram(ctx, ToolCreateProgram, input["program"])
			if err != nil {
				return nil, err
			}
			return m.create(ctx, p)
		},
	}
}

func modifyProgramTool(m *mutator, conversationProgramID string) *tool.Definition {
	return &tool.Definition{
		Name:        ToolModifyProgram,
		Description: "Persist modifications to an existing workout program and return a structured change set.",
		InputSchema: schema.Schema{
			"type": "object",
			"properties": map[string]any{
				"programId": map[string]any{
					"type":        "string",
					"description": "Program id. Optional if already known from conversation context.",
				},
				"updatedProgram": map[string]any{
					"type":        "object",
					"description": updatedProgramHint,
				},
				"program": map[string]any{
					"type":        "object",
					"description": "Alias of updatedProgram.",
				},
				"reason": map[string]any{
					"type":        "string",
					"description": "Short summary of what changed and why.",
				},
			},
		},
		Execute: func(ctx context.Context, input map[string]any) (any, error) {
			target, _ := input["programId"].(string)
			if strings.TrimSpace(target) == "" {
				target = conversationProgramID
			}
			if strings.TrimSpace(target) == "" {
				return nil, fmt.Errorf("no programId provided for modify_program")
			}
			current, err := m.load(ctx, target)
			if err != nil {
				return nil, err
			}
			raw := input["updatedProgram"]
			if raw == nil {
				raw = input["program"]
			}
			if raw == nil {
				return nil, fmt.Errorf("modify_program requires updatedProgram")
			}
			proposed, err := parseToolProgram(ctx, ToolModifyProgram, raw)
			if err != nil {
				return nil, err
			}
			return m.modify(ctx, current, proposed)
		},
	}
}

// parseToolProgram reports invalid programs back to the model as a
// recoverable tool error.
func parseToolProgram(ctx context.Context, toolName string, raw any) (*program.Program, error) {
	p, err := program.Parse(ctx, raw)
	if err != nil {
		return nil, core.NewError(err, core.CodeValidationFailed, map[string]any{"tool": toolName})
	}
	return p, nil
}
