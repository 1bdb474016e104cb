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

type describeChunk struct {
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleDescribe returns step-by-step instructions for an exercise.
//
//	@Summary		Describe an exercise
//	@Description	Streams by default: data events carrying {"text"} chunks, then [DONE].
//	@Tags			coach
//	@Accept			json
//	@Produce		json,text/event-stream
//	@Success		200	{object}	map[string]string
//	@Failure		400	{object}	map[string]any	"Exercise name is required"
//	@Router			/exercises/describe [post]
func handleDescribe(c *gin.Context) {
	state, ok := resolveState(c)
	if !ok {
		return
	}
	var req coach.DescribeRequest
	if !bindJSON(c, &req, "exercise name is required") {
		return
	}
	if req.Stream != nil && !*req.Stream {
		text, err := state.Descriptions.Describe(c.Request.Context(), &req, nil)
		if err != nil {
			router.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"text": text})
		return
	}
	streamDescribe(c, state, &req)
}

func streamDescribe(c *gin.Context, state *appstate.State, req *coach.DescribeRequest) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)
	stream := router.StartSSE(c.Writer)
	if stream == nil {
		router.RespondProblemWithCode(c, http.StatusInternalServerError, router.ErrInternalCode, "failed to initialize stream")
		return
	}
	session := state.Streaming.Open(ctx, monitoring.StreamDescribe)
	defer session.Close(ctx)
	var writeErr error
	_, err := state.Descriptions.Describe(ctx, req, func(chunk string) {
		if writeErr != nil || chunk == "" {
			return
		}
		if writeErr = stream.WriteData(describeChunk{Text: chunk}); writeErr == nil {
			session.Event(ctx, "text")
		}
	})
	if err != nil {
		log.Error("Exercise description stream failed", "error", core.RedactError(err))
		session.Fail(ctx, core.ErrorCode(err))
		_ = stream.WriteData(describeChunk{Error: "Streaming failed"})
		return
	}
	if writeErr != nil {
		log.Warn("Exercise description stream write failed", "error", writeErr)
		session.Fail(ctx, "write_failed")
		return
	}
	_ = stream.WriteData(router.DoneSentinel)
	session.Event(ctx, "done")
}
