package program

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findChange(changes []Change, entity EntityType, id, field string) (Change, bool) {
	for _, c := range changes {
		if c.EntityType == entity && c.EntityID == id && c.Field == field {
			return c, true
		}
	}
	return Change{}, false
}

func TestDiff(t *testing.T) {
	t.Run("Should return an empty change set for identical programs", func(t *testing.T) {
		changes := Diff(sampleProgram(), sampleProgram())
		assert.NotNil(t, changes)
		assert.Empty(t, changes)
	})

	t.Run("Should report program scalar changes", func(t *testing.T) {
		after := sampleProgram()
		after.Name = "Strength Base v2"
		after.StartDate = NewDate(2025, time.February, 3)
		after.Schedule.Duration = nil

		changes := Diff(sampleProgram(), after)

		name, ok := findChange(changes, EntityProgram, "prog-1", "name")
		require.True(t, ok)
		assert.Equal(t, OpReplace, name.Op)
		start, ok := findChange(changes, EntityProgram, "prog-1", "startDate")
		require.True(t, ok)
		assert.Equal(t, "2025-01-06", start.Before)
		assert.Equal(t, "2025-02-03", start.After)
		duration, ok := findChange(changes, EntityProgram, "prog-1", "duration")
		require.True(t, ok)
		assert.Equal(t, OpRemove, duration.Op)
		assert.Nil(t, duration.After)
	})

	t.Run("Should diff schedule days in order", func(t *testing.T) {
		after := sampleProgram()
		after.Schedule.WeeklyPattern = []WeeklyPattern{
			{DayOfWeek: 4, WorkoutIndex: 1},
			{DayOfWeek: 0, WorkoutIndex: 1},
		}

		changes := Diff(sampleProgram(), after)

		require.Len(t, changes, 3)
		assert.Equal(t, Change{Op: OpReplace, EntityType: EntitySchedule, EntityID: "day:0", Field: "workoutIndex", Before: 0, After: 1}, changes[0])
		assert.Equal(t, Change{Op: OpRemove, EntityType: EntitySchedule, EntityID: "day:2", Field: "workoutIndex", Before: 1}, changes[1])
		assert.Equal(t, Change{Op: OpAdd, EntityType: EntitySchedule, EntityID: "day:4", Field: "workoutIndex", After: 1}, changes[2])
	})

	t.Run("Should report whole workout additions and removals", func(t *testing.T) {
		after := sampleProgram()
		after.Workouts[1].ID = "w-c"

		changes := Diff(sampleProgram(), after)

		removed, ok := findChange(changes, EntityWorkout, "w-b", "workout")
		require.True(t, ok)
		assert.Equal(t, OpRemove, removed.Op)
		added, ok := findChange(changes, EntityWorkout, "w-c", "workout")
		require.True(t, ok)
		assert.Equal(t, OpAdd, added.Op)
		assert.IsType(t, Workout{}, added.After)
		_, nested := findChange(changes, EntityExercise, "e-bench", "sets")
		assert.False(t, nested)
	})

	t.Run("Should report exercise field changes", func(t *testing.T) {
		after := sampleProgram()
		ex := &after.Workouts[0].Exercises[0]
		ex.Sets = 4
		ex.Reps = ""
		ex.Duration = intPtr(45)
		ex.Equipment = []string{"barbell", "rack"}
		ex.TargetMuscles = []MuscleTarget{{Muscle: "quads", Activation: ActivationPrimary}}

		changes := Diff(sampleProgram(), after)

		sets, ok := findChange(changes, EntityExercise, "e-squat", "sets")
		require.True(t, ok)
		assert.Equal(t, 3, sets.Before)
		assert.Equal(t, 4, sets.After)
		reps, _ := findChange(changes, EntityExercise, "e-squat", "reps")
		assert.Equal(t, OpRemove, reps.Op)
		duration, _ := findChange(changes, EntityExercise, "e-squat", "duration")
		assert.Equal(t, OpAdd, duration.Op)
		assert.Equal(t, 45, duration.After)
		equipment, _ := findChange(changes, EntityExercise, "e-squat", "equipment")
		assert.Equal(t, OpAdd, equipment.Op)
		muscles, _ := findChange(changes, EntityExercise, "e-squat", "targetMuscles")
		assert.Equal(t, OpAdd, muscles.Op)
		assert.Len(t, changes, 5)
	})

	t.Run("Should not emit no-op replaces for equal slices", func(t *testing.T) {
		after := sampleProgram()
		after.Workouts[1].Exercises[0].Equipment = []string{"barbell"}
		assert.Empty(t, Diff(sampleProgram(), after))
	})

	t.Run("Should report exercise additions within a matched workout", func(t *testing.T) {
		after := sampleProgram()
		after.Workouts[1].Exercises = append(after.Workouts[1].Exercises, Exercise{ID: "e-dip", Name: "Dips", Sets: 3, Type: ExerciseMain})

		changes := Diff(sampleProgram(), after)

		require.Len(t, changes, 1)
		assert.Equal(t, OpAdd, changes[0].Op)
		assert.Equal(t, "exercise", changes[0].Field)
	})
}
