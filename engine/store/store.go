package store

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/repcoach/repcoach/engine/program"
)

var (
	ErrProgramNotFound     = errors.New("program not found")
	ErrVersionNotFound     = errors.New("program version not found")
	ErrDescriptionNotFound = errors.New("exercise description not found")
	ErrUserRequired        = errors.New("user id is required")
)

const (
	DefaultAuditLimit = 200
	MaxAuditLimit     = 500
)

// ProgramVersion is an immutable snapshot written on every create and update.
type ProgramVersion struct {
	ID            string           `json:"id"`
	ProgramID     string           `json:"programId"`
	VersionNumber int              `json:"versionNumber"`
	Program       *program.Program `json:"program"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// ExerciseDescription is a generated how-to text keyed by normalized exercise name.
type ExerciseDescription struct {
	NormalizedName string    `json:"normalizedName"`
	ExerciseName   string    `json:"exerciseName"`
	Description    string    `json:"description"`
	Equipment      []string  `json:"equipment,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitzero"`
}

// AuditEntry records one model exchange for a user.
type AuditEntry struct {
	ID              string          `json:"id"`
	UserID          string          `json:"-"`
	Source          string          `json:"source"`
	RequestPayload  json.RawMessage `json:"requestPayload"`
	ResponsePayload json.RawMessage `json:"responsePayload"`
	ErrorMessage    *string         `json:"errorMessage"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// ProgramRepository persists programs owned by users. Every write moves the
// program's current version to a fresh snapshot.
type ProgramRepository interface {
	Create(ctx context.Context, userID string, p *program.Program) (*program.Program, error)
	// Get returns ErrProgramNotFound when the program does not exist or is owned by someone else.
	Get(ctx context.Context, userID, programID string) (*program.Program, error)
	Update(ctx context.Context, userID string, p *program.Program) (*program.Program, error)
	CurrentVersionID(ctx context.Context, userID, programID string) (string, error)
	GetVersion(ctx context.Context, versionID string) (*ProgramVersion, error)
}

type ExerciseDescriptionRepository interface {
	// GetByNames returns the stored descriptions among the given normalized names.
	GetByNames(ctx context.Context, normalized []string) ([]*ExerciseDescription, error)
	Get(ctx context.Context, normalized string) (*ExerciseDescription, error)
	Save(ctx context.Context, desc *ExerciseDescription) error
}

type AuditRepository interface {
	Record(ctx context.Context, entry *AuditEntry) error
	// List returns the newest entries first.
	List(ctx context.Context, userID string, limit int) ([]*AuditEntry, error)
}

type UserRepository interface {
	// EnsureUser creates the application user row when it does not exist yet.
	EnsureUser(ctx context.Context, userID, email string) error
}

// Store bundles the repositories of one backing database.
type Store interface {
	Programs() ProgramRepository
	Descriptions() ExerciseDescriptionRepository
	Audit() AuditRepository
	Users() UserRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeExerciseName builds the lookup key for exercise descriptions.
func NormalizeExerciseName(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
}

// ClampAuditLimit bounds a requested listing size to [1, MaxAuditLimit].
func ClampAuditLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > MaxAuditLimit:
		return MaxAuditLimit
	default:
		return limit
	}
}

// NormalizeNames maps names to distinct, non-empty lookup keys in input order.
func NormalizeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		key := NormalizeExerciseName(n)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
