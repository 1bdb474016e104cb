package llmadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repcoach/repcoach/pkg/config"
)

func TestNewClient(t *testing.T) {
	t.Run("Should build the mock client", func(t *testing.T) {
		client, err := NewClient(&config.LLMConfig{Provider: ProviderMock, Model: "m"})
		require.NoError(t, err)
		assert.IsType(t, &MockClient{}, client)
	})

	t.Run("Should require an anthropic key", func(t *testing.T) {
		_, err := NewClient(&config.LLMConfig{Provider: ProviderAnthropic, Model: "claude"})
		assert.ErrorContains(t, err, "api key")
	})

	t.Run("Should build anthropic with a key", func(t *testing.T) {
		client, err := NewClient(&config.LLMConfig{Provider: ProviderAnthropic, Model: "claude", APIKey: "k"})
		require.NoError(t, err)
		assert.IsType(t, &AnthropicClient{}, client)
	})

	t.Run("Should reject unknown providers", func(t *testing.T) {
		_, err := NewClient(&config.LLMConfig{Provider: "bard"})
		assert.ErrorContains(t, err, "unsupported")
	})
}
