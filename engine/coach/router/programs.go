package coachrouter

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/repcoach/repcoach/engine/coach"
	"github.com/repcoach/repcoach/engine/infra/server/router"
)

// handleGenerate produces a program from the conversation without tools.
//
//	@Summary		Generate a program
//	@Tags			programs
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]any	"{action}"
//	@Failure		422	{object}	map[string]any	"Model output could not be repaired"
//	@Router			/programs/generate [post]
func handleGenerate(c *gin.Context) {
	state, ok := resolveState(c)
	if !ok {
		return
	}
	var req coach.GenerateRequest
	if !bindJSON(c, &req, "messages array is required") {
		return
	}
	action, err := state.Coach.Generate(c.Request.Context(), &req)
	if err != nil {
		router.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"action": action})
}

// handleRepair turns malformed model output into a valid program.
//
//	@Summary		Repair program JSON
//	@Tags			programs
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	coach.RepairResult
//	@Failure		400	{object}	map[string]any	"rawText is required"
//	@Failure		422	{object}	map[string]any	"Repair attempts exhausted"
//	@Router			/programs/repair [post]
func handleRepair(c *gin.Context) {
	state, ok := resolveState(c)
	if !ok {
		return
	}
	var req coach.RepairRequest
	if !bindJSON(c, &req, "rawText is required") {
		return
	}
	result, err := state.Coach.Repair(c.Request.Context(), &req)
	if err != nil {
		router.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
