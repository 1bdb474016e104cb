package server

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/repcoach/repcoach/engine/coach"
	"github.com/repcoach/repcoach/engine/infra/cache"
	"github.com/repcoach/repcoach/engine/infra/monitoring"
	"github.com/repcoach/repcoach/engine/infra/repo"
	"github.com/repcoach/repcoach/engine/infra/server/appstate"
	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
	"github.com/repcoach/repcoach/engine/llm/gateway"
	"github.com/repcoach/repcoach/pkg/config"
	"github.com/repcoach/repcoach/pkg/logger"
)

// SetupDependencies builds every long-lived component from cfg. The returned
// cleanup releases them in reverse order and is safe to call after an error.
func SetupDependencies(ctx context.Context, cfg *config.Config) (Deps, func(), error) {
	var cleanupFuncs []func()
	cleanup := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}
	log := logger.FromContext(ctx)
	shutdownCtx := context.WithoutCancel(ctx)

	mon := monitoring.NewMonitoringServiceWithFallback(ctx, monitoring.FromAppConfig(&cfg.Monitoring))
	mon.SetAsGlobal()
	cleanupFuncs = append(cleanupFuncs, func() {
		if err := mon.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to shut down monitoring", "error", err)
		}
	})

	st, err := repo.NewStore(ctx, &cfg.Database)
	if err != nil {
		return Deps{}, cleanup, fmt.Errorf("failed to setup store: %w", err)
	}
	cleanupFuncs = append(cleanupFuncs, func() {
		if err := st.Close(shutdownCtx); err != nil {
			log.Warn("Failed to close store", "error", err)
		}
	})

	descriptionCache, err := cache.SetupCache(ctx, cache.FromAppConfig(cfg))
	if err != nil {
		return Deps{}, cleanup, fmt.Errorf("failed to setup cache: %w", err)
	}
	var redisClient redis.UniversalClient
	if remote := descriptionCache.Redis(); remote != nil {
		cleanupFuncs = append(cleanupFuncs, func() {
			if err := remote.Close(); err != nil {
				log.Warn("Failed to close redis", "error", err)
			}
		})
		if client, ok := remote.Client().(redis.UniversalClient); ok {
			redisClient = client
		}
	}

	client, err := llmadapter.NewClient(&cfg.LLM)
	if err != nil {
		return Deps{}, cleanup, fmt.Errorf("failed to create LLM client: %w", err)
	}
	cleanupFuncs = append(cleanupFuncs, func() {
		if err := client.Close(); err != nil {
			log.Warn("Failed to close LLM client", "error", err)
		}
	})
	audit := coach.NewAuditRecorder(st.Audit(), &cfg.Audit)
	gw, err := gateway.New(client, gateway.ConfigFromApp(&cfg.LLM, &cfg.Agent), gateway.WithAuditSink(audit))
	if err != nil {
		return Deps{}, cleanup, fmt.Errorf("failed to create model gateway: %w", err)
	}
	prompts, err := coach.LoadPrompts()
	if err != nil {
		return Deps{}, cleanup, fmt.Errorf("failed to load prompts: %w", err)
	}
	svc, err := coach.NewService(gw, st, prompts, coach.ConfigFromApp(&cfg.Agent))
	if err != nil {
		return Deps{}, cleanup, fmt.Errorf("failed to create coach service: %w", err)
	}
	descriptions, err := coach.NewDescriptionService(descriptionCache, st.Descriptions(), gw, prompts)
	if err != nil {
		return Deps{}, cleanup, fmt.Errorf("failed to create description service: %w", err)
	}
	// Pending description writes finish before the store closes.
	cleanupFuncs = append(cleanupFuncs, descriptions.Wait)

	state, err := appstate.NewState(svc, descriptions, audit, st, mon.Streaming())
	if err != nil {
		return Deps{}, cleanup, fmt.Errorf("failed to create app state: %w", err)
	}
	log.Info("Dependencies initialized",
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"store_driver", cfg.Database.Driver,
		"shared_cache", redisClient != nil,
		"monitoring", mon.IsInitialized(),
	)
	return Deps{State: state, Monitoring: mon, Redis: redisClient}, cleanup, nil
}
