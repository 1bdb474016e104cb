package program

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

type WorkoutType string

const (
	WorkoutStrength    WorkoutType = "strength"
	WorkoutCardio      WorkoutType = "cardio"
	WorkoutFlexibility WorkoutType = "flexibility"
	WorkoutMobility    WorkoutType = "mobility"
	WorkoutMixed       WorkoutType = "mixed"
)

type ExerciseType string

const (
	ExerciseWarmup   ExerciseType = "warmup"
	ExerciseMain     ExerciseType = "main"
	ExerciseCooldown ExerciseType = "cooldown"
)

type Activation string

const (
	ActivationPrimary    Activation = "primary"
	ActivationSecondary  Activation = "secondary"
	ActivationStabilizer Activation = "stabilizer"
)

// MuscleGroup names one of the body regions used for muscle annotations.
type MuscleGroup string

// MuscleGroups lists front view regions first, then back view.
var MuscleGroups = []MuscleGroup{
	"chest", "shoulders_front", "biceps", "forearms", "abs", "obliques",
	"hip_flexors", "quads", "inner_thighs", "tibialis",
	"traps", "shoulders_rear", "lats", "rhomboids", "lower_back",
	"triceps", "glutes", "hamstrings", "calves",
}

// Program is a complete workout plan as persisted and as exchanged with the model.
type Program struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId,omitempty"`
	CurrentVersionID string    `json:"currentVersionId,omitempty"`
	IsPaused         bool      `json:"isPaused,omitempty"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	StartDate        Date      `json:"startDate"`
	Schedule         Schedule  `json:"schedule"`
	Workouts         []Workout `json:"workouts"`
	CreatedAt        time.Time `json:"createdAt,omitzero" jsonschema:"-"`
	UpdatedAt        time.Time `json:"updatedAt,omitzero" jsonschema:"-"`
}

type Schedule struct {
	WeeklyPattern []WeeklyPattern `json:"weeklyPattern"`
	// Duration is the program length in weeks.
	Duration *int `json:"duration,omitempty" jsonschema:"minimum=1"`
}

// WeeklyPattern assigns a workout to a weekday. DayOfWeek is Monday-based (0=Mon..6=Sun).
type WeeklyPattern struct {
	DayOfWeek    int `json:"dayOfWeek"    jsonschema:"minimum=0,maximum=6"`
	WorkoutIndex int `json:"workoutIndex" jsonschema:"minimum=0"`
}

type Workout struct {
	ID   string      `json:"id"`
	Name string      `json:"name" jsonschema:"minLength=1"`
	Type WorkoutType `json:"type" jsonschema:"enum=strength,enum=cardio,enum=flexibility,enum=mobility,enum=mixed"`
	// EstimatedDuration is in minutes.
	EstimatedDuration int        `json:"estimatedDuration" jsonschema:"minimum=1"`
	Exercises         []Exercise `json:"exercises"`
	Notes             string     `json:"notes,omitempty"`
}

// Exercise targets either a rep scheme (Reps) or a hold/interval time (Duration, seconds).
type Exercise struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"                 jsonschema:"minLength=1"`
	Sets                 int            `json:"sets"                 jsonschema:"minimum=1"`
	Reps                 string         `json:"reps,omitempty"`
	Duration             *int           `json:"duration,omitempty"   jsonschema:"minimum=1"`
	RestBetweenSets      int            `json:"restBetweenSets"      jsonschema:"minimum=0"`
	RestBetweenExercises int            `json:"restBetweenExercises" jsonschema:"minimum=0"`
	Equipment            []string       `json:"equipment,omitempty"`
	Notes                string         `json:"notes,omitempty"`
	Type                 ExerciseType   `json:"type"                 jsonschema:"enum=warmup,enum=main,enum=cooldown"`
	TargetMuscles        []MuscleTarget `json:"targetMuscles,omitempty"`
}

type MuscleTarget struct {
	Muscle     MuscleGroup `json:"muscle"`
	Activation Activation  `json:"activation" jsonschema:"enum=primary,enum=secondary,enum=stabilizer"`
}

// JSONSchema restricts muscle names to the known groups.
func (MuscleGroup) JSONSchema() *jsonschema.Schema {
	enum := make([]any, len(MuscleGroups))
	for i, m := range MuscleGroups {
		enum[i] = string(m)
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

// ExerciseNames returns the distinct exercise names in workout order.
func (p *Program) ExerciseNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for i := range p.Workouts {
		for _, ex := range p.Workouts[i].Exercises {
			if _, ok := seen[ex.Name]; ok {
				continue
			}
			seen[ex.Name] = struct{}{}
			names = append(names, ex.Name)
		}
	}
	return names
}

// -----------------------------------------------------------------------------
// Date
// -----------------------------------------------------------------------------

const dateLayout = "2006-01-02"

// Date is a calendar day. It marshals as YYYY-MM-DD and also accepts RFC3339.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC3339", s)
	}
	return Date{Time: t.UTC()}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.UTC().Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (Date) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: "Calendar date, YYYY-MM-DD"}
}
