package coachrouter

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/repcoach/repcoach/engine/core"
	"github.com/repcoach/repcoach/engine/infra/server/appstate"
	"github.com/repcoach/repcoach/engine/infra/server/router"
)

func resolveState(c *gin.Context) (*appstate.State, bool) {
	state, err := appstate.GetState(c.Request.Context())
	if err != nil {
		router.RespondProblemWithCode(
			c,
			http.StatusInternalServerError,
			router.ErrInternalCode,
			"application state not initialized",
		)
		return nil, false
	}
	return state, true
}

func bindJSON(c *gin.Context, dst any, detail string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(err)
		router.RespondProblemWithCode(c, http.StatusBadRequest, core.CodeInvalidRequest, detail)
		return false
	}
	return true
}
