package program

import (
	"fmt"
	"strings"
)

// InvariantError carries every domain rule a program breaks.
type InvariantError struct {
	Problems []string
}

func (e *InvariantError) Error() string {
	return "Program validation failed: " + strings.Join(e.Problems, " ")
}

func label(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

// CheckInvariants lists violations of the structural rules schema validation
// cannot express: uniqueness, cross references and non-blank names.
func CheckInvariants(p *Program) []string {
	var problems []string
	if len(p.Workouts) == 0 {
		problems = append(problems, "Program must include at least one workout.")
	}

	workoutIDs := make(map[string]struct{}, len(p.Workouts))
	for i := range p.Workouts {
		w := &p.Workouts[i]
		wl := label(w.Name, w.ID)
		if strings.TrimSpace(w.Name) == "" {
			problems = append(problems, fmt.Sprintf("Workout %d is missing a name.", i+1))
		}
		if w.EstimatedDuration <= 0 {
			problems = append(problems, fmt.Sprintf("Workout %q must have a positive estimatedDuration.", wl))
		}
		if _, dup := workoutIDs[w.ID]; dup {
			problems = append(problems, fmt.Sprintf("Duplicate workout id %q.", w.ID))
		}
		workoutIDs[w.ID] = struct{}{}
		if len(w.Exercises) == 0 {
			problems = append(problems, fmt.Sprintf("Workout %q must include at least one exercise.", wl))
		}
	}

	days := make(map[int]struct{}, len(p.Schedule.WeeklyPattern))
	for _, entry := range p.Schedule.WeeklyPattern {
		if _, dup := days[entry.DayOfWeek]; dup {
			problems = append(problems, fmt.Sprintf("Duplicate schedule dayOfWeek %q.", fmt.Sprint(entry.DayOfWeek)))
		}
		days[entry.DayOfWeek] = struct{}{}
		if entry.DayOfWeek < 0 || entry.DayOfWeek > 6 {
			problems = append(problems, fmt.Sprintf("Schedule dayOfWeek %d is outside 0..6.", entry.DayOfWeek))
		}
		if entry.WorkoutIndex < 0 || entry.WorkoutIndex >= len(p.Workouts) {
			problems = append(
				problems,
				fmt.Sprintf("Schedule references invalid workoutIndex %q.", fmt.Sprint(entry.WorkoutIndex)),
			)
		}
	}

	exerciseIDs := make(map[string]struct{})
	for i := range p.Workouts {
		w := &p.Workouts[i]
		wl := label(w.Name, w.ID)
		for j := range w.Exercises {
			ex := &w.Exercises[j]
			el := label(ex.Name, ex.ID)
			if strings.TrimSpace(ex.Name) == "" {
				problems = append(problems, fmt.Sprintf("Exercise %d in workout %q is missing a name.", j+1, wl))
			}
			if ex.Sets < 1 {
				problems = append(problems, fmt.Sprintf("Exercise %q in workout %q must have sets >= 1.", el, wl))
			}
			if ex.RestBetweenSets < 0 {
				problems = append(problems, fmt.Sprintf("Exercise %q has invalid restBetweenSets.", el))
			}
			if ex.RestBetweenExercises < 0 {
				problems = append(problems, fmt.Sprintf("Exercise %q has invalid restBetweenExercises.", el))
			}
			if ex.Duration != nil && *ex.Duration <= 0 {
				problems = append(problems, fmt.Sprintf("Exercise %q duration must be > 0 when provided.", el))
			}
			if _, dup := exerciseIDs[ex.ID]; dup {
				problems = append(problems, fmt.Sprintf("Duplicate exercise id %q.", ex.ID))
			}
			exerciseIDs[ex.ID] = struct{}{}
		}
	}
	return problems
}

// Validate returns an *InvariantError when p breaks any domain rule.
func Validate(p *Program) error {
	if p == nil {
		return &InvariantError{Problems: []string{"Program is missing."}}
	}
	if problems := CheckInvariants(p); len(problems) > 0 {
		return &InvariantError{Problems: problems}
	}
	return nil
}
