package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/repcoach/repcoach/engine/auth/userctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(m *Manager) (*gin.Engine, *userctx.User) {
	gin.SetMode(gin.TestMode)
	seen := &userctx.User{}
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/open", func(c *gin.Context) {
		if user, ok := userctx.UserFromContext(c.Request.Context()); ok {
			*seen = *user
		}
		c.String(http.StatusOK, UserKey(c))
	})
	r.GET("/private", m.RequireAuth(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r, seen
}

func TestManager(t *testing.T) {
	t.Run("Should attach the forwarded user", func(t *testing.T) {
		r, seen := newTestRouter(NewManager("", ""))
		req := httptest.NewRequest(http.MethodGet, "/open", http.NoBody)
		req.Header.Set("X-User-ID", " user-7 ")
		req.Header.Set("X-User-Email", "Coach@Example.com")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-7", seen.ID)
		assert.Equal(t, "coach@example.com", seen.Email)
		assert.Equal(t, "user:user-7", w.Body.String())
	})
	t.Run("Should honor custom headers", func(t *testing.T) {
		r, seen := newTestRouter(NewManager("X-Auth-Sub", "X-Auth-Email"))
		req := httptest.NewRequest(http.MethodGet, "/open", http.NoBody)
		req.Header.Set("X-Auth-Sub", "abc")
		r.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "abc", seen.ID)
	})
	t.Run("Should fall back to the client IP key when anonymous", func(t *testing.T) {
		r, _ := newTestRouter(NewManager("", ""))
		req := httptest.NewRequest(http.MethodGet, "/open", http.NoBody)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "ip:10.0.0.1", w.Body.String())
	})
	t.Run("Should reject anonymous requests on protected routes", func(t *testing.T) {
		r, _ := newTestRouter(NewManager("", ""))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", http.NoBody))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"UNAUTHORIZED"`)
	})
	t.Run("Should pass authenticated requests on protected routes", func(t *testing.T) {
		r, _ := newTestRouter(NewManager("", ""))
		req := httptest.NewRequest(http.MethodGet, "/private", http.NoBody)
		req.Header.Set("X-User-ID", "u")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
