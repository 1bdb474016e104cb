package program

import (
	"fmt"
	"reflect"
	"sort"
)

type ChangeOp string

const (
	OpAdd     ChangeOp = "add"
	OpRemove  ChangeOp = "remove"
	OpReplace ChangeOp = "replace"
)

type EntityType string

const (
	EntityProgram  EntityType = "program"
	EntitySchedule EntityType = "schedule"
	EntityWorkout  EntityType = "workout"
	EntityExercise EntityType = "exercise"
)

// Change is one field-level difference between two program versions.
// A nil Before or After means the value is absent on that side.
type Change struct {
	Op         ChangeOp   `json:"op"`
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	Field      string     `json:"field"`
	Before     any        `json:"before,omitempty"`
	After      any        `json:"after,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

type changeSet []Change

func (cs *changeSet) push(entity EntityType, id, field string, before, after any) {
	if before == nil && after == nil {
		return
	}
	if reflect.DeepEqual(before, after) {
		return
	}
	op := OpReplace
	switch {
	case before == nil:
		op = OpAdd
	case after == nil:
		op = OpRemove
	}
	*cs = append(*cs, Change{
		Op:         op,
		EntityType: entity,
		EntityID:   id,
		Field:      field,
		Before:     before,
		After:      after,
	})
}

func optInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func optString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func optStrings(v []string) any {
	if len(v) == 0 {
		return nil
	}
	return v
}

func optMuscles(v []MuscleTarget) any {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Diff computes the flat change set turning before into after. Entries with
// equal values on both sides are omitted.
func Diff(before, after *Program) []Change {
	if before == nil {
		before = &Program{}
	}
	if after == nil {
		after = &Program{}
	}
	cs := changeSet{}
	cs.push(EntityProgram, before.ID, "name", before.Name, after.Name)
	cs.push(EntityProgram, before.ID, "description", before.Description, after.Description)
	cs.push(EntityProgram, before.ID, "startDate", optString(before.StartDate.String()), optString(after.StartDate.String()))
	cs.push(EntityProgram, before.ID, "duration", optInt(before.Schedule.Duration), optInt(after.Schedule.Duration))
	diffSchedule(&cs, before.Schedule.WeeklyPattern, after.Schedule.WeeklyPattern)
	diffWorkouts(&cs, before.Workouts, after.Workouts)
	return cs
}

func diffSchedule(cs *changeSet, before, after []WeeklyPattern) {
	beforeByDay := make(map[int]int, len(before))
	afterByDay := make(map[int]int, len(after))
	days := make(map[int]struct{})
	for _, e := range before {
		beforeByDay[e.DayOfWeek] = e.WorkoutIndex
		days[e.DayOfWeek] = struct{}{}
	}
	for _, e := range after {
		afterByDay[e.DayOfWeek] = e.WorkoutIndex
		days[e.DayOfWeek] = struct{}{}
	}
	ordered := make([]int, 0, len(days))
	for d := range days {
		ordered = append(ordered, d)
	}
	sort.Ints(ordered)
	for _, day := range ordered {
		var b, a any
		if idx, ok := beforeByDay[day]; ok {
			b = idx
		}
		if idx, ok := afterByDay[day]; ok {
			a = idx
		}
		cs.push(EntitySchedule, fmt.Sprintf("day:%d", day), "workoutIndex", b, a)
	}
}

// unionIDs returns ids in first-seen order: before side first, then new ones from after.
func unionIDs(before, after []string) []string {
	seen := make(map[string]struct{}, len(before)+len(after))
	var out []string
	for _, list := range [][]string{before, after} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func diffWorkouts(cs *changeSet, before, after []Workout) {
	beforeByID := make(map[string]*Workout, len(before))
	afterByID := make(map[string]*Workout, len(after))
	beforeIDs := make([]string, 0, len(before))
	afterIDs := make([]string, 0, len(after))
	for i := range before {
		beforeByID[before[i].ID] = &before[i]
		beforeIDs = append(beforeIDs, before[i].ID)
	}
	for i := range after {
		afterByID[after[i].ID] = &after[i]
		afterIDs = append(afterIDs, after[i].ID)
	}
	for _, id := range unionIDs(beforeIDs, afterIDs) {
		b, a := beforeByID[id], afterByID[id]
		if b == nil || a == nil {
			var bv, av any
			if b != nil {
				bv = *b
			}
			if a != nil {
				av = *a
			}
			cs.push(EntityWorkout, id, "workout", bv, av)
			continue
		}
		cs.push(EntityWorkout, id, "name", b.Name, a.Name)
		cs.push(EntityWorkout, id, "type", b.Type, a.Type)
		cs.push(EntityWorkout, id, "estimatedDuration", b.EstimatedDuration, a.EstimatedDuration)
		cs.push(EntityWorkout, id, "notes", optString(b.Notes), optString(a.Notes))
		diffExercises(cs, b.Exercises, a.Exercises)
	}
}

func diffExercises(cs *changeSet, before, after []Exercise) {
	beforeByID := make(map[string]*Exercise, len(before))
	afterByID := make(map[string]*Exercise, len(after))
	beforeIDs := make([]string, 0, len(before))
	afterIDs := make([]string, 0, len(after))
	for i := range before {
		beforeByID[before[i].ID] = &before[i]
		beforeIDs = append(beforeIDs, before[i].ID)
	}
	for i := range after {
		afterByID[after[i].ID] = &after[i]
		afterIDs = append(afterIDs, after[i].ID)
	}
	for _, id := range unionIDs(beforeIDs, afterIDs) {
		b, a := beforeByID[id], afterByID[id]
		if b == nil || a == nil {
			var bv, av any
			if b != nil {
				bv = *b
			}
			if a != nil {
				av = *a
			}
			cs.push(EntityExercise, id, "exercise", bv, av)
			continue
		}
		cs.push(EntityExercise, id, "name", b.Name, a.Name)
		cs.push(EntityExercise, id, "sets", b.Sets, a.Sets)
		cs.push(EntityExercise, id, "reps", optString(b.Reps), optString(a.Reps))
		cs.push(EntityExercise, id, "duration", optInt(b.Duration), optInt(a.Duration))
		cs.push(EntityExercise, id, "restBetweenSets", b.RestBetweenSets, a.RestBetweenSets)
		cs.push(EntityExercise, id, "restBetweenExercises", b.RestBetweenExercises, a.RestBetweenExercises)
		cs.push(EntityExercise, id, "equipment", optStrings(b.Equipment), optStrings(a.Equipment))
		cs.push(EntityExercise, id, "notes", optString(b.Notes), optString(a.Notes))
		cs.push(EntityExercise, id, "type", b.Type, a.Type)
		cs.push(EntityExercise, id, "targetMuscles", optMuscles(b.TargetMuscles), optMuscles(a.TargetMuscles))
	}
}
