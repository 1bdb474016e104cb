package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/repcoach/repcoach/engine/auth/userctx"
	"github.com/repcoach/repcoach/engine/core"
	"github.com/repcoach/repcoach/engine/infra/server/router"
	"github.com/repcoach/repcoach/pkg/logger"
)

const (
	DefaultUserHeader  = "X-User-ID"
	DefaultEmailHeader = "X-User-Email"
)

// Manager resolves the caller identity forwarded by the upstream
// authentication proxy.
type Manager struct {
	userHeader  string
	emailHeader string
}

func NewManager(userHeader, emailHeader string) *Manager {
	if userHeader == "" {
		userHeader = DefaultUserHeader
	}
	if emailHeader == "" {
		emailHeader = DefaultEmailHeader
	}
	return &Manager{userHeader: userHeader, emailHeader: emailHeader}
}

// Middleware attaches the user to the request context when the identity
// header is present. Requests without it continue anonymously.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(m.userHeader))
		if id == "" {
			c.Next()
			return
		}
		user := &userctx.User{
			ID:    id,
			Email: strings.ToLower(strings.TrimSpace(c.GetHeader(m.emailHeader))),
		}
		ctx := userctx.WithUser(c.Request.Context(), user)
		log := logger.FromContext(ctx).With("user_id", user.ID)
		c.Request = c.Request.WithContext(logger.ContextWithLogger(ctx, log))
		c.Set(userKey, user.ID)
		c.Next()
	}
}

const userKey = "user_id"

// RequireAuth rejects anonymous requests.
func (m *Manager) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := userctx.UserFromContext(c.Request.Context()); !ok {
			router.RespondProblemWithCode(c, http.StatusUnauthorized, core.CodeUnauthorized, "authentication required")
			return
		}
		c.Next()
	}
}

// UserKey returns the rate limit key for the request: the user id when
// authenticated, the client IP otherwise.
func UserKey(c *gin.Context) string {
	if id := c.GetString(userKey); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}
