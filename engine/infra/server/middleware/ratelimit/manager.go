package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/repcoach/repcoach/engine/infra/server/router"
	"github.com/repcoach/repcoach/pkg/logger"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/otel/metric"
)

// KeyFunc derives the limiter key for a request.
type KeyFunc func(c *gin.Context) string

// Manager owns the limiter and its backing store.
type Manager struct {
	config  *Config
	limiter *limiter.Limiter
	keyFunc KeyFunc
	driver  string
}

// NewManager builds a limiter backed by Redis when client is non-nil and by
// process memory otherwise.
func NewManager(cfg *Config, client redis.UniversalClient, keyFunc KeyFunc) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	opts := limiter.StoreOptions{
		Prefix:          cfg.Prefix,
		MaxRetry:        cfg.MaxRetry,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	}
	var (
		store  limiter.Store
		driver = "memory"
		err    error
	)
	if client != nil {
		store, err = sredis.NewStoreWithOptions(client, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
		}
		driver = "redis"
	} else {
		store = memory.NewStoreWithOptions(opts)
	}
	return &Manager{
		config:  cfg,
		limiter: limiter.New(store, cfg.Rate.ToLimiterRate()),
		keyFunc: keyFunc,
		driver:  driver,
	}, nil
}

// NewManagerWithMetrics is NewManager plus the blocked-request counter.
func NewManagerWithMetrics(
	ctx context.Context,
	cfg *Config,
	client redis.UniversalClient,
	keyFunc KeyFunc,
	meter metric.Meter,
) (*Manager, error) {
	if meter != nil {
		if err := InitMetrics(meter); err != nil {
			logger.FromContext(ctx).Error("Failed to initialize rate limit metrics", "error", err)
		}
	}
	return NewManager(cfg, client, keyFunc)
}

// Driver reports the backing store ("memory" or "redis").
func (m *Manager) Driver() string { return m.driver }

// Middleware returns the rate limiting middleware. Limit headers are set on
// every limited response.
func (m *Manager) Middleware() gin.HandlerFunc {
	handler := mgin.NewMiddleware(
		m.limiter,
		mgin.WithKeyGetter(func(c *gin.Context) string { return m.keyFunc(c) }),
		mgin.WithLimitReachedHandler(m.limitReached),
		mgin.WithErrorHandler(m.storeFailed),
	)
	return func(c *gin.Context) {
		if m.excluded(c.Request.URL.Path) {
			c.Next()
			return
		}
		handler(c)
	}
}

func (m *Manager) excluded(path string) bool {
	for _, prefix := range m.config.ExcludedPaths {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func (m *Manager) limitReached(c *gin.Context) {
	key := m.keyFunc(c)
	keyType, _, _ := strings.Cut(key, ":")
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	incrementBlockedRequests(c.Request.Context(), route, keyType)
	router.RespondProblemWithCode(c, http.StatusTooManyRequests, router.ErrRateLimitedCode, "rate limit exceeded")
}

// storeFailed lets the request through; a broken limiter store must not
// take the API down.
func (m *Manager) storeFailed(c *gin.Context, err error) {
	logger.FromContext(c.Request.Context()).Warn("Rate limit store unavailable", "error", err)
	c.Next()
}
