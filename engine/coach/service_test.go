package coach

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repcoach/repcoach/engine/auth/userctx"
	"github.com/repcoach/repcoach/engine/core"
	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
	"github.com/repcoach/repcoach/engine/program"
	"github.com/repcoach/repcoach/engine/store"
)

func onboardingRequest() *TurnRequest {
	return &TurnRequest{
		ConversationType: "onboarding",
		Messages:         []Turn{{Role: "user", Content: "Two days a week, barbell only"}},
	}
}

func collect(events *[]Event) EventSink {
	return func(e Event) { *events = append(*events, e) }
}

func TestService_HandleTurn(t *testing.T) {
	t.Run("Should create a program through the tool and return the action", func(t *testing.T) {
		st := setupStore(t)
		client := llmadapter.NewMockClient(
			llmadapter.Calls(toolCall(t, "call-1", ToolCreateProgram, map[string]any{
				"program": rawProgram(t),
				"reason":  "fits two barbell days",
			})),
			llmadapter.Text("Your Strength Base program is ready."),
		)
		svc := newService(t, st, client, Config{ToolCalling: true, RepairAttempts: 2})
		ctx := userContext(t, testUser())
		var events []Event

		resp, err := svc.HandleTurn(ctx, onboardingRequest(), collect(&events))

		require.NoError(t, err)
		assert.Equal(t, "Your Strength Base program is ready.", resp.Text)
		require.NotNil(t, resp.Action)
		assert.Equal(t, ActionCreateProgram, resp.Action.Type)
		assert.NotEmpty(t, resp.Action.ProgramVersionID)

		stored, err := st.Programs().Get(ctx, testUser().ID, resp.Action.ProgramID)
		require.NoError(t, err)
		assert.Equal(t, "Strength Base", stored.Name)
		assert.Equal(t, resp.Action.ProgramVersionID, stored.CurrentVersionID)
		assert.Equal(t, program.WeeklyPattern{DayOfWeek: 0, WorkoutIndex: 0}, stored.Schedule.WeeklyPattern[0])

		requests := client.Requests()
		require.Len(t, requests, 2)
		require.Len(t, requests[0].Tools, 1)
		assert.Equal(t, ToolCreateProgram, requests[0].Tools[0].Name)
		assert.Equal(t, llmadapter.ToolChoiceNone, requests[1].Options.ToolChoice)

		types := make([]EventType, len(events))
		for i, e := range events {
			types[i] = e.Type
		}
		assert.Equal(t, []EventType{EventStatus, EventStatus, EventText, EventAction}, types)
	})

	t.Run("Should fall back to the default text when the summary is empty", func(t *testing.T) {
		st := setupStore(t)
		client := llmadapter.NewMockClient(
			llmadapter.Calls(toolCall(t, "call-1", ToolCreateProgram, map[string]any{"program": rawProgram(t)})),
			llmadapter.Text("  "),
		)
		svc := newService(t, st, client, Config{ToolCalling: true})

		resp, err := svc.HandleTurn(userContext(t, testUser()), onboardingRequest(), nil)

		require.NoError(t, err)
		assert.Equal(t, "Your program is ready. Redirecting you to it now.", resp.Text)
	})

	t.Run("Should report invalid programs to the model and accept the retry", func(t *testing.T) {
		st := setupStore(t)
		invalid := rawProgram(t)
		invalid["workouts"] = []any{}
		client := llmadapter.NewMockClient(
			llmadapter.Calls(toolCall(t, "call-1", ToolCreateProgram, map[string]any{"program": invalid})),
			llmadapter.Calls(toolCall(t, "call-2", ToolCreateProgram, map[string]any{"program": rawProgram(t)})),
			llmadapter.Text("Created."),
		)
		svc := newService(t, st, client, Config{ToolCalling: true})

		resp, err := svc.HandleTurn(userContext(t, testUser()), onboardingRequest(), nil)

		require.NoError(t, err)
		require.NotNil(t, resp.Action)
		requests := client.Requests()
		require.Len(t, requests, 3)
		second := requests[1].Messages
		last := second[len(second)-1]
		require.Len(t, last.ToolResults, 1)
		assert.True(t, last.ToolResults[0].IsError)
	})

	t.Run("Should modify the conversation program and return the change set", func(t *testing.T) {
		st := setupStore(t)
		user := testUser()
		seeded := seedProgram(t, st, user)
		require.NoError(t, st.Descriptions().Save(t.Context(), &store.ExerciseDescription{
			NormalizedName: "bench_press",
			ExerciseName:   "Bench Press",
			Description:    "Lower the bar to the chest.",
		}))
		updated := rawProgram(t)
		workouts := updated["workouts"].([]any)
		first := workouts[0].(map[string]any)
		first["id"] = "renamed-by-model"
		exercises := first["exercises"].([]any)
		exercises[1].(map[string]any)["sets"] = 4.0
		client := llmadapter.NewMockClient(
			llmadapter.Calls(toolCall(t, "call-1", ToolModifyProgram, map[string]any{"updatedProgram": updated})),
			llmadapter.Text("Bench press now has four sets."),
		)
		svc := newService(t, st, client, Config{ToolCalling: true})
		req := &TurnRequest{
			ConversationType: "reevaluation",
			ProgramID:        seeded.ID,
			Messages:         []Turn{{Role: "user", Content: "More bench volume please"}},
		}

		resp, err := svc.HandleTurn(userContext(t, user), req, nil)

		require.NoError(t, err)
		require.NotNil(t, resp.Action)
		action := resp.Action
		assert.Equal(t, ActionModifyProgram, action.Type)
		assert.Equal(t, seeded.ID, action.ProgramID)
		assert.Equal(t, seeded.CurrentVersionID, action.PreviousVersionID)
		assert.NotEqual(t, action.PreviousVersionID, action.ProgramVersionID)
		require.Len(t, action.ChangeSet, 1)
		assert.Equal(t, program.Change{
			Op:         program.OpReplace,
			EntityType: program.EntityExercise,
			EntityID:   "e-bench",
			Field:      "sets",
			Before:     3.0,
			After:      4.0,
		}, action.ChangeSet[0], "values decode from the tool result JSON")

		stored, err := st.Programs().Get(t.Context(), user.ID, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, "w-a", stored.Workouts[0].ID)
		assert.Equal(t, 4, stored.Workouts[0].Exercises[1].Sets)

		system := client.Requests()[0].SystemPrompt
		assert.Contains(t, system, "Current Program JSON (authoritative context):\n{")
		assert.Contains(t, system, "\n\nExercise Details:\n### Bench Press\nLower the bar to the chest.")
		assert.NotContains(t, system, user.ID)
	})

	t.Run("Should accept the program alias in modify input", func(t *testing.T) {
		st := setupStore(t)
		user := testUser()
		seeded := seedProgram(t, st, user)
		client := llmadapter.NewMockClient(
			llmadapter.Calls(toolCall(t, "call-1", ToolModifyProgram, map[string]any{
				"programId": seeded.ID,
				"program":   rawProgram(t),
			})),
			llmadapter.Text(""),
		)
		svc := newService(t, st, client, Config{ToolCalling: true})
		req := &TurnRequest{ConversationType: "modification", ProgramID: seeded.ID, Messages: onboardingRequest().Messages}

		resp, err := svc.HandleTurn(userContext(t, user), req, nil)

		require.NoError(t, err)
		require.NotNil(t, resp.Action)
		assert.Empty(t, resp.Action.ChangeSet)
		assert.NotNil(t, resp.Action.ChangeSet)
		assert.Equal(t, "I updated your program and applied the requested changes.", resp.Text)
	})

	t.Run("Should abort the turn when the model targets a foreign program", func(t *testing.T) {
		st := setupStore(t)
		user := testUser()
		own := seedProgram(t, st, user)
		foreign := seedProgram(t, st, &userctx.User{ID: "user-2", Email: "other@example.com"})
		client := llmadapter.NewMockClient(
			llmadapter.Calls(toolCall(t, "call-1", ToolModifyProgram, map[string]any{
				"programId":      foreign.ID,
				"updatedProgram": rawProgram(t),
			})),
		)
		svc := newService(t, st, client, Config{ToolCalling: true})
		req := &TurnRequest{ConversationType: "modification", ProgramID: own.ID, Messages: onboardingRequest().Messages}

		_, err := svc.HandleTurn(userContext(t, user), req, nil)

		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodeNotFound))
		assert.Len(t, client.Requests(), 1)
	})

	t.Run("Should end the turn without retrying when the store write fails", func(t *testing.T) {
		st := &brokenCreateStore{Store: setupStore(t), err: errors.New("insert failed: disk full")}
		client := llmadapter.NewMockClient(
			llmadapter.Calls(toolCall(t, "call-1", ToolCreateProgram, map[string]any{"program": rawProgram(t)})),
			llmadapter.Calls(toolCall(t, "call-2", ToolCreateProgram, map[string]any{"program": rawProgram(t)})),
			llmadapter.Text("unused"),
		)
		prompts, err := LoadPrompts()
		require.NoError(t, err)
		svc, err := NewService(newGateway(t, client), st, prompts, Config{ToolCalling: true})
		require.NoError(t, err)

		_, err = svc.HandleTurn(userContext(t, testUser()), onboardingRequest(), nil)

		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodeStoreFailure))
		assert.ErrorIs(t, err, st.err)
		assert.Equal(t, 1, st.creates)
		assert.Len(t, client.Requests(), 1)
	})

	t.Run("Should reject modification without a program id", func(t *testing.T) {
		svc := newService(t, setupStore(t), llmadapter.NewMockClient(), Config{ToolCalling: true})
		req := &TurnRequest{ConversationType: "modification", Messages: onboardingRequest().Messages}

		_, err := svc.HandleTurn(userContext(t, testUser()), req, nil)

		assert.True(t, core.HasCode(err, core.CodeInvalidRequest))
	})

	t.Run("Should require an authenticated user", func(t *testing.T) {
		svc := newService(t, setupStore(t), llmadapter.NewMockClient(), Config{ToolCalling: true})

		_, err := svc.HandleTurn(t.Context(), onboardingRequest(), nil)

		assert.True(t, core.HasCode(err, core.CodeUnauthorized))
	})

	t.Run("Should stream plain text when tool calling is off", func(t *testing.T) {
		client := llmadapter.NewMockClient(llmadapter.Text("What equipment do you have?"))
		svc := newService(t, setupStore(t), client, Config{ToolCalling: false})
		var events []Event

		resp, err := svc.HandleTurn(userContext(t, testUser()), onboardingRequest(), collect(&events))

		require.NoError(t, err)
		assert.Equal(t, "What equipment do you have?", resp.Text)
		assert.Nil(t, resp.Action)
		assert.Empty(t, client.Requests()[0].Tools)
		assert.Contains(t, client.Requests()[0].SystemPrompt, ReadyToGenerate)
		assert.Equal(t, Event{Type: EventText, Text: "What equipment do you have?"}, events[len(events)-1])
	})

	t.Run("Should surface model failures", func(t *testing.T) {
		client := llmadapter.NewMockClient(llmadapter.Fail(errors.New("invalid x-api-key")))
		svc := newService(t, setupStore(t), client, Config{ToolCalling: true})

		_, err := svc.HandleTurn(userContext(t, testUser()), onboardingRequest(), nil)

		assert.True(t, core.HasCode(err, core.CodeLLMGeneration))
	})
}

func TestService_Generate(t *testing.T) {
	t.Run("Should repair generated output before creating the program", func(t *testing.T) {
		st := setupStore(t)
		client := llmadapter.NewMockClient(
			llmadapter.Text("Here you go:\n```json\n{\"name\": \"broken\"\n```"),
			llmadapter.Text(programDoc),
		)
		svc := newService(t, st, client, Config{RepairAttempts: 2})
		ctx := userContext(t, testUser())

		action, err := svc.Generate(ctx, &GenerateRequest{
			ConversationType: "onboarding",
			Messages:         onboardingRequest().Messages,
		})

		require.NoError(t, err)
		assert.Equal(t, ActionCreateProgram, action.Type)
		requests := client.Requests()
		require.Len(t, requests, 2)
		assert.Contains(t, requests[0].SystemPrompt, "creating a structured workout program")
		assert.Contains(t, requests[1].SystemPrompt, "strict JSON repair assistant")
	})

	t.Run("Should stop after the configured repairs", func(t *testing.T) {
		client := llmadapter.NewMockClient(
			llmadapter.Text("no json"),
			llmadapter.Text("still none"),
			llmadapter.Text("{"),
		)
		svc := newService(t, setupStore(t), client, Config{RepairAttempts: 2})

		_, err := svc.Generate(userContext(t, testUser()), &GenerateRequest{
			ConversationType: "onboarding",
			Messages:         onboardingRequest().Messages,
		})

		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodeExtractionFailed))
		assert.Len(t, client.Requests(), 3)
	})

	t.Run("Should reconcile generated modifications with the stored program", func(t *testing.T) {
		st := setupStore(t)
		user := testUser()
		seeded := seedProgram(t, st, user)
		client := llmadapter.NewMockClient(llmadapter.Text(programDoc))
		svc := newService(t, st, client, Config{RepairAttempts: 2})

		action, err := svc.Generate(userContext(t, user), &GenerateRequest{
			ConversationType: "modification",
			ProgramID:        seeded.ID,
			Messages:         onboardingRequest().Messages,
		})

		require.NoError(t, err)
		assert.Equal(t, ActionModifyProgram, action.Type)
		assert.Equal(t, seeded.ID, action.ProgramID)
		assert.Empty(t, action.ChangeSet)
		assert.Contains(t, client.Requests()[0].SystemPrompt, "modifying an existing workout program")
	})
}

func TestService_Repair(t *testing.T) {
	t.Run("Should return the repaired program", func(t *testing.T) {
		client := llmadapter.NewMockClient(llmadapter.Text("```json\n" + programDoc + "\n```"))
		svc := newService(t, setupStore(t), client, Config{RepairAttempts: 2})

		res, err := svc.Repair(userContext(t, testUser()), &RepairRequest{
			RawText:        "{\"name\": \"Strength Base\",",
			CurrentProgram: map[string]any{"id": "p-1"},
		})

		require.NoError(t, err)
		assert.Equal(t, "Strength Base", res.Program.Name)
		msg := client.Requests()[0].Messages[0].Content
		assert.Contains(t, msg, `Current program (preserve IDs where possible): {"id":"p-1"}`)
		assert.Contains(t, msg, "Malformed output:\n{\"name\": \"Strength Base\",")
	})

	t.Run("Should require raw text", func(t *testing.T) {
		svc := newService(t, setupStore(t), llmadapter.NewMockClient(), Config{})

		_, err := svc.Repair(userContext(t, testUser()), &RepairRequest{RawText: " "})

		assert.True(t, core.HasCode(err, core.CodeInvalidRequest))
	})
}
