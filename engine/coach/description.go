package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/repcoach/repcoach/engine/core"
	"github.com/repcoach/repcoach/engine/infra/cache"
	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
	"github.com/repcoach/repcoach/engine/store"
	"github.com/repcoach/repcoach/pkg/logger"
)

// Streamer is the streaming model call used for descriptions.
type Streamer interface {
	Stream(
		ctx context.Context,
		conversation []llmadapter.Message,
		systemPrompt string,
		onChunk llmadapter.StreamHandler,
	) (string, error)
}

type DescribeRequest struct {
	ExerciseName string   `json:"exerciseName" binding:"required"`
	Equipment    []string `json:"equipment,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	Stream       *bool    `json:"stream,omitempty"`
}

// DescriptionService serves exercise instructions from the cache, then the
// store, and generates them on a miss.
type DescriptionService struct {
	cache        cache.Cache
	repo         store.ExerciseDescriptionRepository
	model        Streamer
	systemPrompt string
	saves        sync.WaitGroup
}

func NewDescriptionService(
	c cache.Cache,
	repo store.ExerciseDescriptionRepository,
	model Streamer,
	prompts *Prompts,
) (*DescriptionService, error) {
	systemPrompt, err := prompts.Render(PromptExerciseDescription, nil)
	if err != nil {
		return nil, err
	}
	return &DescriptionService{cache: c, repo: repo, model: model, systemPrompt: systemPrompt}, nil
}

// Describe returns the description for req.ExerciseName. onChunk receives
// the whole text at once on a hit and the model deltas on a miss.
func (d *DescriptionService) Describe(ctx context.Context, req *DescribeRequest, onChunk func(string)) (string, error) {
	key := store.NormalizeExerciseName(req.ExerciseName)
	if key == "" {
		return "", core.NewError(errors.New("exercise name is required"), core.CodeInvalidRequest, nil)
	}
	if onChunk == nil {
		onChunk = func(string) {}
	}
	log := logger.FromContext(ctx).With("exercise", key)

	if text, err := d.cache.Get(ctx, key); err == nil {
		log.Debug("Exercise description served from cache")
		onChunk(text)
		return text, nil
	}
	stored, err := d.repo.Get(ctx, key)
	switch {
	case err == nil:
		if err := d.cache.Set(ctx, key, stored.Description); err != nil {
			log.Warn("Failed to cache exercise description", "error", core.RedactError(err))
		}
		onChunk(stored.Description)
		return stored.Description, nil
	case !errors.Is(err, store.ErrDescriptionNotFound):
		log.Warn("Failed to read exercise description, generating", "error", core.RedactError(err))
	}

	ctx = WithAuditSource(ctx, "exercise_description")
	prompt := DescriptionPrompt(strings.TrimSpace(req.ExerciseName), req.Equipment, req.Notes)
	conversation := []llmadapter.Message{{Role: llmadapter.RoleUser, Content: prompt}}
	text, err := d.model.Stream(ctx, conversation, d.systemPrompt, func(chunk string) error {
		onChunk(chunk)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate description for %s: %w", req.ExerciseName, err)
	}
	if err := d.cache.Set(ctx, key, text); err != nil {
		log.Warn("Failed to cache exercise description", "error", core.RedactError(err))
	}
	d.save(ctx, &store.ExerciseDescription{
		NormalizedName: key,
		ExerciseName:   strings.TrimSpace(req.ExerciseName),
		Description:    text,
		Equipment:      req.Equipment,
	})
	return text, nil
}

// save persists in the background; the request does not wait for it.
func (d *DescriptionService) save(ctx context.Context, desc *store.ExerciseDescription) {
	ctx = context.WithoutCancel(ctx)
	d.saves.Go(func() {
		if err := d.repo.Save(ctx, desc); err != nil {
			logger.FromContext(ctx).Warn("Failed to save exercise description",
				"exercise", desc.NormalizedName,
				"error", core.RedactError(err),
			)
		}
	})
}

// Wait blocks until pending saves finish.
func (d *DescriptionService) Wait() {
	d.saves.Wait()
}
