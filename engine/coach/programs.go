package coach

import (
	"context"
	"errors"
	"fmt"

	"github.com/repcoach/repcoach/engine/auth/userctx"
	"github.com/repcoach/repcoach/engine/core"
	"github.com/repcoach/repcoach/engine/program"
	"github.com/repcoach/repcoach/engine/store"
	"github.com/repcoach/repcoach/pkg/logger"
)

// mutator applies validated programs to the store on behalf of one user.
type mutator struct {
	store     store.Store
	user      *userctx.User
	reconcile []program.ReconcileOption
}

func (m *mutator) ensureUser(ctx context.Context) error {
	if err := m.store.Users().EnsureUser(ctx, m.user.ID, m.user.Email); err != nil {
		return storeError(err, "ensure user")
	}
	return nil
}

// load returns the program when it exists and belongs to the user.
func (m *mutator) load(ctx context.Context, programID string) (*program.Program, error) {
	if err := m.ensureUser(ctx); err != nil {
		return nil, err
	}
	p, err := m.store.Programs().Get(ctx, m.user.ID, programID)
	if err != nil {
		return nil, storeError(err, "load program")
	}
	return p, nil
}

func (m *mutator) create(ctx context.Context, p *program.Program) (*Action, error) {
	if err := m.ensureUser(ctx); err != nil {
		return nil, err
	}
	created, err := m.store.Programs().Create(ctx, m.user.ID, p)
	if err != nil {
		return nil, storeError(err, "create program")
	}
	versionID, err := m.store.Programs().CurrentVersionID(ctx, m.user.ID, created.ID)
	if err != nil {
		return nil, storeError(err, "read program version")
	}
	logger.FromContext(ctx).Info("Program created",
		"program_id", created.ID,
		"version_id", versionID,
		"workouts", len(created.Workouts),
	)
	return &Action{Type: ActionCreateProgram, ProgramID: created.ID, ProgramVersionID: versionID}, nil
}

// modify reconciles proposed against current, persists the result and
// reports what changed.
func (m *mutator) modify(ctx context.Context, current, proposed *program.Program) (*Action, error) {
	proposed.ID = current.ID
	merged, err := program.Reconcile(current, proposed, m.reconcile...)
	if err != nil {
		return nil, core.NewError(err, core.CodeValidationFailed, nil)
	}
	if err := program.Validate(merged); err != nil {
		return nil, core.NewError(err, core.CodeValidationFailed, nil)
	}
	changes := program.Diff(current, merged)
	if changes == nil {
		changes = []program.Change{}
	}
	updated, err := m.store.Programs().Update(ctx, m.user.ID, merged)
	if err != nil {
		return nil, storeError(err, "update program")
	}
	versionID, err := m.store.Programs().CurrentVersionID(ctx, m.user.ID, updated.ID)
	if err != nil {
		return nil, storeError(err, "read program version")
	}
	logger.FromContext(ctx).Info("Program modified",
		"program_id", updated.ID,
		"previous_version_id", current.CurrentVersionID,
		"version_id", versionID,
		"changes", len(changes),
	)
	return &Action{
		Type:              ActionModifyProgram,
		ProgramID:         current.ID,
		PreviousVersionID: current.CurrentVersionID,
		ProgramVersionID:  versionID,
		ChangeSet:         changes,
	}, nil
}

func storeError(err error, op string) error {
	if errors.Is(err, store.ErrProgramNotFound) {
		return core.NewError(err, core.CodeNotFound, nil)
	}
	if errors.Is(err, store.ErrUserRequired) {
		return core.NewError(err, core.CodeUnauthorized, nil)
	}
	return core.NewError(fmt.Errorf("failed to %s: %w", op, err), core.CodeStoreFailure, nil)
}
