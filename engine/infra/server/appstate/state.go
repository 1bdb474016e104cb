package appstate

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/repcoach/repcoach/engine/coach"
	"github.com/repcoach/repcoach/engine/infra/monitoring"
	"github.com/repcoach/repcoach/engine/store"
)

type contextKey string

const stateKey contextKey = "app_state"

// State carries the services handlers need for one process.
type State struct {
	Coach        *coach.Service
	Descriptions *coach.DescriptionService
	Audit        *coach.AuditRecorder
	Store        store.Store
	Streaming    *monitoring.StreamingMetrics
}

func NewState(
	svc *coach.Service,
	descriptions *coach.DescriptionService,
	audit *coach.AuditRecorder,
	st store.Store,
	streaming *monitoring.StreamingMetrics,
) (*State, error) {
	if svc == nil {
		return nil, fmt.Errorf("coach service is required")
	}
	if descriptions == nil {
		return nil, fmt.Errorf("description service is required")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if streaming == nil {
		streaming = &monitoring.StreamingMetrics{}
	}
	return &State{
		Coach:        svc,
		Descriptions: descriptions,
		Audit:        audit,
		Store:        st,
		Streaming:    streaming,
	}, nil
}

func WithState(ctx context.Context, state *State) context.Context {
	return context.WithValue(ctx, stateKey, state)
}

func GetState(ctx context.Context) (*State, error) {
	state, ok := ctx.Value(stateKey).(*State)
	if !ok || state == nil {
		return nil, fmt.Errorf("app state not found in context")
	}
	return state, nil
}

// StateMiddleware exposes state to downstream handlers.
func StateMiddleware(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithState(c.Request.Context(), state))
		c.Next()
	}
}
