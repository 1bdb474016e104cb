package coachrouter

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/repcoach/repcoach/engine/infra/server/router"
	"github.com/repcoach/repcoach/engine/store"
)

const defaultAuditLimit = 200

// handleListAudit lists the caller's recorded model exchanges.
//
//	@Summary		List AI request logs
//	@Description	Restricted to allow-listed emails. limit is clamped to [1,500].
//	@Tags			debug
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum entries"	default(200)
//	@Success		200		{object}	map[string]any	"{logs}"
//	@Failure		403		{object}	map[string]any	"Forbidden"
//	@Router			/debug/ai-requests [get]
func handleListAudit(c *gin.Context) {
	state, ok := resolveState(c)
	if !ok {
		return
	}
	logs, err := state.Audit.List(c.Request.Context(), parseLimit(c.Query("limit")))
	if err != nil {
		router.RespondError(c, err)
		return
	}
	if logs == nil {
		logs = []*store.AuditEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// parseLimit truncates fractional values and falls back to the default on
// anything non-numeric.
func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultAuditLimit
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.Abs(f) > 1e9 {
		return defaultAuditLimit
	}
	return int(f)
}
