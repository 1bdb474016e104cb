package coach

import (
	"fmt"
	"strings"
	"time"

	"github.com/repcoach/repcoach/engine/core"
	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
)

type ConversationType string

const (
	ConversationOnboarding   ConversationType = "onboarding"
	ConversationModification ConversationType = "modification"
)

// ParseConversationType accepts "reevaluation" as a legacy name for modification.
func ParseConversationType(s string) (ConversationType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ConversationOnboarding):
		return ConversationOnboarding, nil
	case string(ConversationModification), "reevaluation":
		return ConversationModification, nil
	}
	return "", core.NewError(
		fmt.Errorf("unknown conversation type %q", s),
		core.CodeInvalidRequest,
		map[string]any{"conversationType": s},
	)
}

// Turn is one message of the conversation as sent by the client.
type Turn struct {
	Role           string    `json:"role"                     binding:"required,oneof=user assistant"`
	Content        string    `json:"content"`
	DisplayContent string    `json:"displayContent,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitzero"`
}

// TurnRequest is one chat request.
type TurnRequest struct {
	Messages         []Turn `json:"messages"         binding:"required,dive"`
	ConversationType string `json:"conversationType" binding:"required"`
	ProgramID        string `json:"programId,omitempty"`
	Stream           bool   `json:"stream,omitempty"`
}

// TurnResponse is the result of a completed turn.
type TurnResponse struct {
	Text   string  `json:"text"`
	Action *Action `json:"action,omitempty"`
}

// Validate checks the request without running the turn.
func (r *TurnRequest) Validate() error {
	_, err := r.validate()
	return err
}

func (r *TurnRequest) validate() (ConversationType, error) {
	kind, err := ParseConversationType(r.ConversationType)
	if err != nil {
		return "", err
	}
	if len(r.Messages) == 0 {
		return "", core.NewError(fmt.Errorf("messages array is required"), core.CodeInvalidRequest, nil)
	}
	for i, m := range r.Messages {
		if m.Role != llmadapter.RoleUser && m.Role != llmadapter.RoleAssistant {
			return "", core.NewError(
				fmt.Errorf("message %d has invalid role %q", i, m.Role),
				core.CodeInvalidRequest,
				nil,
			)
		}
	}
	if kind == ConversationModification && strings.TrimSpace(r.ProgramID) == "" {
		return "", core.NewError(
			fmt.Errorf("programId is required for modification conversations"),
			core.CodeInvalidRequest,
			nil,
		)
	}
	return kind, nil
}

// messages converts turns for the model. Only Content is sent; DisplayContent
// is what the UI showed and may differ.
func messages(turns []Turn) []llmadapter.Message {
	out := make([]llmadapter.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, llmadapter.Message{Role: t.Role, Content: t.Content})
	}
	return out
}
