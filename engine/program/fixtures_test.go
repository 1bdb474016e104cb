package program

import "time"

func intPtr(v int) *int { return &v }

func sampleProgram() *Program {
	weeks := 8
	return &Program{
		ID:          "prog-1",
		UserID:      "user-1",
		Name:        "Strength Base",
		Description: "Three day full body",
		StartDate:   NewDate(2025, time.January, 6),
		Schedule: Schedule{
			WeeklyPattern: []WeeklyPattern{
				{DayOfWeek: 0, WorkoutIndex: 0},
				{DayOfWeek: 2, WorkoutIndex: 1},
			},
			Duration: &weeks,
		},
		Workouts: []Workout{
			{
				ID:                "w-a",
				Name:              "Day A",
				Type:              WorkoutStrength,
				EstimatedDuration: 45,
				Exercises: []Exercise{
					{ID: "e-squat", Name: "Back Squat", Sets: 3, Reps: "8-10", RestBetweenSets: 90, RestBetweenExercises: 120, Type: ExerciseMain},
					{ID: "e-plank", Name: "Plank", Sets: 3, Duration: intPtr(30), RestBetweenSets: 30, RestBetweenExercises: 60, Type: ExerciseCooldown},
				},
			},
			{
				ID:                "w-b",
				Name:              "Day B",
				Type:              WorkoutStrength,
				EstimatedDuration: 50,
				Exercises: []Exercise{
					{ID: "e-bench", Name: "Bench Press", Sets: 4, Reps: "6", RestBetweenSets: 120, RestBetweenExercises: 120, Type: ExerciseMain, Equipment: []string{"barbell"}},
				},
			},
		},
		CreatedAt: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + string(rune('0'+n))
	}
}
