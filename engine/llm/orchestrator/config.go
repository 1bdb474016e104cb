package orchestrator

import llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"

const DefaultMaxRounds = 6

// Config bounds the loop.
type Config struct {
	MaxRounds int
	// Options is the base call options; the loop overrides tool choice.
	Options llmadapter.CallOptions
}

func (c Config) maxRounds() int {
	if c.MaxRounds <= 0 {
		return DefaultMaxRounds
	}
	return c.MaxRounds
}
