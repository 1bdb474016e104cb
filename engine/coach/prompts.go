package coach

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/pretty"

	"github.com/repcoach/repcoach/engine/program"
	"github.com/repcoach/repcoach/pkg/tplengine"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

const (
	PromptOnboarding          = "onboarding"
	PromptModification        = "modification"
	PromptModifyProgram       = "modify_program"
	PromptGeneration          = "generation"
	PromptRepair              = "repair"
	PromptExerciseDescription = "exercise_description"

	// Markers asked for when tools are off; the client watches for them.
	ReadyToGenerate = "READY_TO_GENERATE"
	ReadyToModify   = "READY_TO_MODIFY"

	descriptionMaxWords = 400
)

// Prompts renders the embedded system prompts.
type Prompts struct {
	engine *tplengine.TemplateEngine
	now    func() time.Time
}

func LoadPrompts() (*Prompts, error) {
	engine := tplengine.NewEngine()
	if err := engine.LoadFS(promptFS, "prompts/*.tmpl"); err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	muscles := make([]string, len(program.MuscleGroups))
	for i, m := range program.MuscleGroups {
		muscles[i] = string(m)
	}
	engine.AddGlobalValue("muscles", muscles)
	engine.AddGlobalValue("maxWords", descriptionMaxWords)
	return &Prompts{engine: engine, now: time.Now}, nil
}

func (p *Prompts) Render(name string, data map[string]any) (string, error) {
	out, err := p.engine.Render(name, data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Conversation returns the chat system prompt for kind.
func (p *Prompts) Conversation(kind ConversationType, toolCalling bool) (string, error) {
	name, marker := PromptOnboarding, ReadyToGenerate
	if kind == ConversationModification {
		name, marker = PromptModification, ReadyToModify
	}
	return p.Render(name, map[string]any{"toolCalling": toolCalling, "readyMarker": marker})
}

// Generation returns the prompt that turns a conversation into program JSON.
func (p *Prompts) Generation(kind ConversationType) (string, error) {
	if kind == ConversationModification {
		return p.Render(PromptModifyProgram, nil)
	}
	return p.Render(PromptGeneration, map[string]any{"today": today(p.now())})
}

func today(now time.Time) string {
	return program.NewDate(now.Year(), now.Month(), now.Day()).String()
}

// ExerciseDetail is one stored description shown to the model.
type ExerciseDetail struct {
	Name        string
	Description string
}

// WithProgramContext appends the authoritative program and its exercise
// details to a system prompt.
func WithProgramContext(systemPrompt string, current *program.Program, details []ExerciseDetail) (string, error) {
	data, err := programJSON(current)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nCurrent Program JSON (authoritative context):\n")
	b.Write(data)
	if len(details) > 0 {
		sections := make([]string, len(details))
		for i, d := range details {
			sections[i] = "### " + d.Name + "\n" + d.Description
		}
		b.WriteString("\n\nExercise Details:\n")
		b.WriteString(strings.Join(sections, "\n\n"))
	}
	return b.String(), nil
}

// programJSON renders p indented for the model, without server-owned fields.
func programJSON(p *program.Program) ([]byte, error) {
	view := *p
	view.UserID = ""
	view.CurrentVersionID = ""
	view.CreatedAt = time.Time{}
	view.UpdatedAt = time.Time{}
	data, err := json.Marshal(&view)
	if err != nil {
		return nil, fmt.Errorf("failed to encode program context: %w", err)
	}
	return bytes.TrimRight(pretty.PrettyOptions(data, &pretty.Options{Width: 80, Indent: "  "}), "\n"), nil
}

// DescriptionPrompt is the user message asking for exercise instructions.
func DescriptionPrompt(name string, equipment []string, notes string) string {
	prompt := "Provide instructions for: " + name
	if len(equipment) > 0 {
		prompt += "\nEquipment: " + strings.Join(equipment, ", ")
	}
	if strings.TrimSpace(notes) != "" {
		prompt += "\nAdditional context: " + notes
	}
	return prompt
}
