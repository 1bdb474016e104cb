package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/repcoach/repcoach/engine/auth/userctx"
	"github.com/repcoach/repcoach/engine/infra/sqlite"
	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
	"github.com/repcoach/repcoach/engine/llm/gateway"
	"github.com/repcoach/repcoach/engine/program"
	"github.com/repcoach/repcoach/engine/store"
)

const programDoc = `{
	"id": "draft", "name": "Strength Base", "description": "Two full body days", "startDate": "2025-03-03",
	"schedule": {"weeklyPattern": [{"dayName": "Mon", "workoutName": "Full Body A"},
		{"dayOfWeek": 3, "workoutIndex": 1}], "duration": 6},
	"workouts": [
		{"id": "w-a", "name": "Full Body A", "type": "strength", "estimatedDuration": 45,
			"exercises": [
				{"id": "e-squat", "name": "Back Squat", "sets": 3, "reps": "5",
					"restBetweenSets": 120, "restBetweenExercises": 120, "type": "main"},
				{"id": "e-bench", "name": "Bench Press", "sets": 3, "reps": "5",
					"restBetweenSets": 120, "restBetweenExercises": 90, "type": "main"}]},
		{"id": "w-b", "name": "Full Body B", "type": "strength", "estimatedDuration": 45,
			"exercises": [
				{"id": "e-dead", "name": "Deadlift", "sets": 1, "reps": "5",
					"restBetweenSets": 180, "restBetweenExercises": 120, "type": "main"}]}
	]
}`

func rawProgram(t *testing.T) map[string]any {
	t.Helper()
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(programDoc), &raw))
	return raw
}

func toolCall(t *testing.T, id, name string, input map[string]any) llmadapter.ToolCall {
	t.Helper()
	args, err := json.Marshal(input)
	require.NoError(t, err)
	return llmadapter.ToolCall{ID: id, Name: name, Arguments: args}
}

func testUser() *userctx.User {
	return &userctx.User{ID: "user-1", Email: "coach@example.com"}
}

func userContext(t *testing.T, user *userctx.User) context.Context {
	t.Helper()
	return userctx.WithUser(t.Context(), user)
}

func setupStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := t.Context()
	st, err := sqlite.NewStore(ctx, &sqlite.Config{Path: filepath.Join(t.TempDir(), "coach.db")})
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { _ = st.Close(context.WithoutCancel(ctx)) })
	return st
}

func newGateway(t *testing.T, client llmadapter.LLMClient, opts ...gateway.Option) *gateway.Gateway {
	t.Helper()
	gw, err := gateway.New(client, gateway.Config{
		Attempts:    1,
		BackoffBase: time.Millisecond,
		MaxRounds:   6,
		Options:     llmadapter.CallOptions{Model: "test-model"},
	}, opts...)
	require.NoError(t, err)
	return gw
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newService(t *testing.T, st *sqlite.Store, client llmadapter.LLMClient, cfg Config) *Service {
	t.Helper()
	prompts, err := LoadPrompts()
	require.NoError(t, err)
	svc, err := NewService(newGateway(t, client), st, prompts, cfg, WithReconcileOptions(
		program.WithIDGenerator(sequentialIDs("gen")),
	))
	require.NoError(t, err)
	return svc
}

// seedProgram stores programDoc for user and returns the persisted copy.
func seedProgram(t *testing.T, st *sqlite.Store, user *userctx.User) *program.Program {
	t.Helper()
	ctx := t.Context()
	require.NoError(t, st.Users().EnsureUser(ctx, user.ID, user.Email))
	p, err := program.ParseJSON(ctx, []byte(programDoc))
	require.NoError(t, err)
	created, err := st.Programs().Create(ctx, user.ID, p)
	require.NoError(t, err)
	return created
}

// brokenCreateStore fails every program insert.
type brokenCreateStore struct {
	store.Store
	err     error
	creates int
}

func (s *brokenCreateStore) Programs() store.ProgramRepository {
	return &brokenCreatePrograms{ProgramRepository: s.Store.Programs(), owner: s}
}

type brokenCreatePrograms struct {
	store.ProgramRepository
	owner *brokenCreateStore
}

func (p *brokenCreatePrograms) Create(context.Context, string, *program.Program) (*program.Program, error) {
	p.owner.creates++
	return nil, p.owner.err
}
