package coach

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/repcoach/repcoach/engine/llm/orchestrator"
	"github.com/repcoach/repcoach/engine/program"
)

type ActionType string

const (
	ActionCreateProgram ActionType = "create_program"
	ActionModifyProgram ActionType = "modify_program"
)

// Action is the persisted outcome of a tool call, returned to the caller so
// the UI can navigate to the program or render the change-set.
type Action struct {
	Type              ActionType       `json:"type"`
	ProgramID         string           `json:"programId"`
	PreviousVersionID string           `json:"previousVersionId,omitempty"`
	ProgramVersionID  string           `json:"programVersionId,omitempty"`
	ChangeSet         []program.Change `json:"changeSet,omitzero"`
}

// ParseAction recognizes an action in a tool result. A create needs a
// program id; a modify additionally needs a change-set array.
func ParseAction(raw json.RawMessage) (*Action, bool) {
	if !gjson.ValidBytes(raw) {
		return nil, false
	}
	doc := gjson.ParseBytes(raw)
	if doc.Get("programId").Type != gjson.String {
		return nil, false
	}
	switch ActionType(doc.Get("type").String()) {
	case ActionCreateProgram:
	case ActionModifyProgram:
		if !doc.Get("changeSet").IsArray() {
			return nil, false
		}
	default:
		return nil, false
	}
	var action Action
	if err := json.Unmarshal(raw, &action); err != nil {
		return nil, false
	}
	if action.Type == ActionModifyProgram && action.ChangeSet == nil {
		action.ChangeSet = []program.Change{}
	}
	return &action, true
}

// lastAction returns the action of the last successful execution that produced one.
func lastAction(executions []orchestrator.ToolExecution) *Action {
	var action *Action
	for i := range executions {
		exec := &executions[i]
		if !exec.Succeeded() || len(exec.Result) == 0 {
			continue
		}
		if a, ok := ParseAction(exec.Result); ok {
			action = a
		}
	}
	return action
}

// DefaultCompletionText stands in when the model's final answer is empty.
func DefaultCompletionText(action *Action) string {
	switch {
	case action == nil:
		return "Thanks. I updated the conversation context."
	case action.Type == ActionCreateProgram:
		return "Your program is ready. Redirecting you to it now."
	default:
		return "I updated your program and applied the requested changes."
	}
}
