package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoutes(t *testing.T) {
	t.Run("Should nest every resource under the versioned base", func(t *testing.T) {
		assert.Equal(t, "/api/v0", Base())
		assert.Equal(t, "/api/v0/chat", Chat())
		assert.Equal(t, "/api/v0/exercises", Exercises())
		assert.Equal(t, "/api/v0/programs", Programs())
		assert.Equal(t, "/api/v0/debug", Debug())
		assert.Equal(t, "/api/v0/health", HealthVersioned())
	})
}
