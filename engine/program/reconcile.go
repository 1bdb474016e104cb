package program

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/repcoach/repcoach/engine/core"
)

type reconcileOptions struct {
	newID func() string
	now   func() time.Time
}

type ReconcileOption func(*reconcileOptions)

// WithIDGenerator overrides how fresh ids are minted.
func WithIDGenerator(fn func() string) ReconcileOption {
	return func(o *reconcileOptions) { o.newID = fn }
}

// WithClock overrides the timestamp source for UpdatedAt.
func WithClock(fn func() time.Time) ReconcileOption {
	return func(o *reconcileOptions) { o.now = fn }
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// idPool hands out ids that are unique within one merge pass.
type idPool struct {
	used  map[string]struct{}
	newID func() string
}

func newIDPool(newID func() string) *idPool {
	return &idPool{used: make(map[string]struct{}), newID: newID}
}

func (p *idPool) claim(candidate string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate != "" {
		if _, taken := p.used[candidate]; !taken {
			p.used[candidate] = struct{}{}
			return candidate
		}
	}
	for {
		id := p.newID()
		if _, taken := p.used[id]; !taken {
			p.used[id] = struct{}{}
			return id
		}
	}
}

// matcher finds the existing entity a modified one corresponds to. Each
// existing entity is matched at most once.
type matcher[T any] struct {
	items    []T
	byID     map[string]int
	byName   map[string][]int
	consumed map[int]struct{}
}

func newMatcher[T any](items []T, idOf, nameOf func(*T) string) *matcher[T] {
	m := &matcher[T]{
		items:    items,
		byID:     make(map[string]int, len(items)),
		byName:   make(map[string][]int, len(items)),
		consumed: make(map[int]struct{}),
	}
	for i := range items {
		if _, seen := m.byID[idOf(&items[i])]; !seen {
			m.byID[idOf(&items[i])] = i
		}
		if key := normalizeName(nameOf(&items[i])); key != "" {
			m.byName[key] = append(m.byName[key], i)
		}
	}
	return m
}

func (m *matcher[T]) match(id, name string) (*T, bool) {
	if idx, ok := m.byID[id]; ok && id != "" {
		if _, used := m.consumed[idx]; !used {
			m.consumed[idx] = struct{}{}
			return &m.items[idx], true
		}
	}
	for _, idx := range m.byName[normalizeName(name)] {
		if _, used := m.consumed[idx]; !used {
			m.consumed[idx] = struct{}{}
			return &m.items[idx], true
		}
	}
	return nil, false
}

// Reconcile merges a model-produced program into the persisted one so that
// workouts and exercises the model kept carry their durable ids. Neither
// input is modified.
func Reconcile(existing, modified *Program, opts ...ReconcileOption) (*Program, error) {
	o := reconcileOptions{newID: uuid.NewString, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if modified == nil {
		return nil, fmt.Errorf("modified program is required")
	}
	merged, err := core.DeepCopy(modified)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		existing = &Program{}
	}

	workoutIDs := newIDPool(o.newID)
	exerciseIDs := newIDPool(o.newID)
	workouts := newMatcher(existing.Workouts,
		func(w *Workout) string { return w.ID },
		func(w *Workout) string { return w.Name })

	for i := range merged.Workouts {
		w := &merged.Workouts[i]
		prior, found := workouts.match(w.ID, w.Name)
		candidate := w.ID
		var priorExercises []Exercise
		if found {
			candidate = prior.ID
			priorExercises = prior.Exercises
		}
		w.ID = workoutIDs.claim(candidate)

		exercises := newMatcher(priorExercises,
			func(e *Exercise) string { return e.ID },
			func(e *Exercise) string { return e.Name })
		for j := range w.Exercises {
			ex := &w.Exercises[j]
			candidate := ex.ID
			if priorEx, ok := exercises.match(ex.ID, ex.Name); ok {
				candidate = priorEx.ID
			}
			ex.ID = exerciseIDs.claim(candidate)
		}
	}

	merged.ID = existing.ID
	merged.UserID = existing.UserID
	merged.CurrentVersionID = existing.CurrentVersionID
	merged.IsPaused = existing.IsPaused
	merged.CreatedAt = existing.CreatedAt
	merged.UpdatedAt = o.now()
	return merged, nil
}
