package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/repcoach/repcoach/engine/program"
	"github.com/repcoach/repcoach/engine/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := t.Context()
	s, err := NewStore(ctx, &Config{Path: filepath.Join(t.TempDir(), "repcoach.db")})
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close(ctx) })
	return s
}

func sampleProgram() *program.Program {
	weeks := 8
	return &program.Program{
		Name:        "Hypertrophy Block",
		Description: "Upper and lower split",
		StartDate:   program.NewDate(2025, time.April, 7),
		Schedule: program.Schedule{
			WeeklyPattern: []program.WeeklyPattern{{DayOfWeek: 0, WorkoutIndex: 0}, {DayOfWeek: 3, WorkoutIndex: 0}},
			Duration:      &weeks,
		},
		Workouts: []program.Workout{{
			ID:                "w-upper",
			Name:              "Upper",
			Type:              program.WorkoutStrength,
			EstimatedDuration: 50,
			Exercises: []program.Exercise{{
				ID: "e-press", Name: "Bench Press", Sets: 4, Reps: "8", RestBetweenSets: 90, Type: program.ExerciseMain,
			}},
		}},
	}
}

func TestBuildDSN(t *testing.T) {
	t.Run("Should build DSN for file path with pragmas", func(t *testing.T) {
		d, inMemory, err := buildDSN(&Config{Path: "/tmp/test.db"})
		require.NoError(t, err)
		assert.False(t, inMemory)
		assert.Contains(t, d, "file:/tmp/test.db?")
		assert.Contains(t, d, "foreign_keys%28ON%29")
	})

	t.Run("Should give every in-memory store its own database", func(t *testing.T) {
		a, inMemory, err := buildDSN(&Config{Path: ":memory:"})
		require.NoError(t, err)
		assert.True(t, inMemory)
		b, _, err := buildDSN(&Config{Path: ":memory:"})
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("Should require a path", func(t *testing.T) {
		_, _, err := buildDSN(&Config{})
		assert.Error(t, err)
	})
}

func TestProgramRepo(t *testing.T) {
	t.Run("Should create and read back an owned program", func(t *testing.T) {
		s := setupStore(t)
		ctx := t.Context()
		require.NoError(t, s.Users().EnsureUser(ctx, "user-1", "lifter@example.com"))

		created, err := s.Programs().Create(ctx, "user-1", sampleProgram())
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		require.NotEmpty(t, created.CurrentVersionID)

		got, err := s.Programs().Get(ctx, "user-1", created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.CurrentVersionID, got.CurrentVersionID)
		assert.Equal(t, "2025-04-07", got.StartDate.String())
		require.NotNil(t, got.Schedule.Duration)
		assert.Equal(t, 8, *got.Schedule.Duration)
		assert.Equal(t, "Bench Press", got.Workouts[0].Exercises[0].Name)
	})

	t.Run("Should hide programs owned by other users", func(t *testing.T) {
		s := setupStore(t)
		ctx := t.Context()
		require.NoError(t, s.Users().EnsureUser(ctx, "owner", ""))
		created, err := s.Programs().Create(ctx, "owner", sampleProgram())
		require.NoError(t, err)

		_, err = s.Programs().Get(ctx, "someone-else", created.ID)
		assert.ErrorIs(t, err, store.ErrProgramNotFound)
		_, err = s.Programs().Update(ctx, "someone-else", created)
		assert.ErrorIs(t, err, store.ErrProgramNotFound)
	})

	t.Run("Should snapshot every update as a new version", func(t *testing.T) {
		s := setupStore(t)
		ctx := t.Context()
		require.NoError(t, s.Users().EnsureUser(ctx, "user-1", ""))
		created, err := s.Programs().Create(ctx, "user-1", sampleProgram())
		require.NoError(t, err)

		modified := *created
		modified.Name = "Hypertrophy Block II"
		updated, err := s.Programs().Update(ctx, "user-1", &modified)
		require.NoError(t, err)
		assert.NotEqual(t, created.CurrentVersionID, updated.CurrentVersionID)

		current, err := s.Programs().CurrentVersionID(ctx, "user-1", created.ID)
		require.NoError(t, err)
		assert.Equal(t, updated.CurrentVersionID, current)

		first, err := s.Programs().GetVersion(ctx, created.CurrentVersionID)
		require.NoError(t, err)
		second, err := s.Programs().GetVersion(ctx, current)
		require.NoError(t, err)
		assert.Equal(t, 1, first.VersionNumber)
		assert.Equal(t, 2, second.VersionNumber)
		assert.Equal(t, "Hypertrophy Block", first.Program.Name)
		assert.Equal(t, "Hypertrophy Block II", second.Program.Name)

		_, err = s.Programs().GetVersion(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrVersionNotFound)
	})

	t.Run("Should reject programs for unknown users", func(t *testing.T) {
		s := setupStore(t)
		_, err := s.Programs().Create(t.Context(), "ghost", sampleProgram())
		assert.Error(t, err)
	})
}

func TestDescriptionRepo(t *testing.T) {
	t.Run("Should upsert and look up by normalized names", func(t *testing.T) {
		s := setupStore(t)
		ctx := t.Context()
		repo := s.Descriptions()
		require.NoError(t, repo.Save(ctx, &store.ExerciseDescription{
			NormalizedName: "bench_press", ExerciseName: "Bench Press", Description: "v1",
		}))
		require.NoError(t, repo.Save(ctx, &store.ExerciseDescription{
			NormalizedName: "bench_press", ExerciseName: "Bench Press", Description: "v2",
			Equipment: []string{"barbell", "bench"},
		}))
		require.NoError(t, repo.Save(ctx, &store.ExerciseDescription{
			NormalizedName: "plank", ExerciseName: "Plank", Description: "hold",
		}))

		got, err := repo.Get(ctx, "bench_press")
		require.NoError(t, err)
		assert.Equal(t, "v2", got.Description)
		assert.Equal(t, []string{"barbell", "bench"}, got.Equipment)

		many, err := repo.GetByNames(ctx, []string{"plank", "bench_press", "missing"})
		require.NoError(t, err)
		require.Len(t, many, 2)
		assert.Equal(t, "bench_press", many[0].NormalizedName)

		_, err = repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrDescriptionNotFound)
	})
}

func TestAuditRepo(t *testing.T) {
	t.Run("Should list the newest entries first within the limit", func(t *testing.T) {
		s := setupStore(t)
		ctx := t.Context()
		base := time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC)
		failure := "upstream overloaded"
		for i := range 3 {
			entry := &store.AuditEntry{
				UserID:         "user-1",
				Source:         "chat",
				RequestPayload: []byte(`{"round":` + string(rune('0'+i)) + `}`),
				CreatedAt:      base.Add(time.Duration(i) * time.Minute),
			}
			if i == 2 {
				entry.ErrorMessage = &failure
			}
			require.NoError(t, s.Audit().Record(ctx, entry))
		}
		require.NoError(t, s.Audit().Record(ctx, &store.AuditEntry{UserID: "user-2", Source: "chat"}))

		got, err := s.Audit().List(ctx, "user-1", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.JSONEq(t, `{"round":2}`, string(got[0].RequestPayload))
		require.NotNil(t, got[0].ErrorMessage)
		assert.Equal(t, failure, *got[0].ErrorMessage)
		assert.Nil(t, got[1].ErrorMessage)
		assert.Nil(t, got[1].ResponsePayload)
	})
}
