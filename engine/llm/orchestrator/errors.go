package orchestrator

import (
	"errors"
	"fmt"

	"github.com/repcoach/repcoach/engine/core"
)

// ErrLoopExhausted is returned when the round cap is reached without a
// successful tool call or a plain text answer.
var ErrLoopExhausted = errors.New("tool loop exceeded max rounds")

// ErrProtocolViolation is returned when the model stops for tool use but
// requests no tools.
var ErrProtocolViolation = errors.New("model stopped for tool use without tool calls")

func loopExhausted(rounds int) error {
	return core.NewError(
		fmt.Errorf("%w (%d)", ErrLoopExhausted, rounds),
		core.CodeLoopExhausted,
		map[string]any{"rounds": rounds},
	)
}

func protocolViolation(round int) error {
	return core.NewError(ErrProtocolViolation, core.CodeProtocolViolation, map[string]any{"round": round})
}

func toolNotFoundMessage(name string) string {
	return fmt.Sprintf("Unknown tool: %s", name)
}

const skippedToolMessage = "Skipped: only one tool execution is applied per turn."
