package coachrouter

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/repcoach/repcoach/engine/coach"
	"github.com/repcoach/repcoach/engine/core"
	"github.com/repcoach/repcoach/engine/infra/monitoring"
	"github.com/repcoach/repcoach/engine/infra/server/appstate"
	"github.com/repcoach/repcoach/engine/infra/server/router"
	"github.com/repcoach/repcoach/pkg/logger"
)

// handleChat runs one conversation turn.
//
//	@Summary		Chat with the coach
//	@Description	Runs one onboarding or modification turn. With stream=true the reply is sent as
//	@Description	Server-Sent Events: status, text, action, then done or error.
//	@Tags			coach
//	@Accept			json
//	@Produce		json,text/event-stream
//	@Success		200	{object}	coach.TurnResponse
//	@Failure		400	{object}	map[string]any	"Invalid chat payload"
//	@Failure		404	{object}	map[string]any	"Program not found"
//	@Failure		502	{object}	map[string]any	"Model unavailable"
//	@Router			/chat [post]
func handleChat(c *gin.Context) {
	state, ok := resolveState(c)
	if !ok {
		return
	}
	var req coach.TurnRequest
	if !bindJSON(c, &req, "invalid chat payload") {
		return
	}
	if err := req.Validate(); err != nil {
		router.RespondError(c, err)
		return
	}
	if req.Stream {
		streamChat(c, state, &req)
		return
	}
	resp, err := state.Coach.HandleTurn(c.Request.Context(), &req, nil)
	if err != nil {
		router.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func streamChat(c *gin.Context, state *appstate.State, req *coach.TurnRequest) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)
	stream := router.StartSSE(c.Writer)
	if stream == nil {
		router.RespondProblemWithCode(c, http.StatusInternalServerError, router.ErrInternalCode, "failed to initialize stream")
		return
	}
	session := state.Streaming.Open(ctx, monitoring.StreamChat)
	defer session.Close(ctx)
	var writeErr error
	send := func(e coach.Event) {
		if writeErr != nil {
			return
		}
		if writeErr = stream.WriteEvent(string(e.Type), e); writeErr != nil {
			log.Warn("Chat stream write failed", "error", writeErr)
			session.Fail(ctx, "write_failed")
			return
		}
		session.Event(ctx, string(e.Type))
	}
	if _, err := state.Coach.HandleTurn(ctx, req, send); err != nil {
		code := core.ErrorCode(err)
		if code == "" {
			code = router.ErrInternalCode
		}
		log.Error("Chat turn failed", "code", code, "error", core.RedactError(err))
		session.Fail(ctx, code)
		send(coach.Event{Type: coach.EventError, Error: router.PublicMessage(err)})
		return
	}
	send(coach.Event{Type: coach.EventDone})
}
