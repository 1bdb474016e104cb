package router

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/repcoach/repcoach/engine/core"
	"github.com/repcoach/repcoach/pkg/logger"
)

// RespondProblem writes a canonical RFC 7807 error response.
func RespondProblem(c *gin.Context, problem *core.Problem) {
	prepared := core.NormalizeProblem(problem)
	body := core.BuildProblemBody(prepared)
	writeProblemResponse(c, prepared, body)
}

// RespondProblemWithCode writes a problem response embedding a code and detail.
func RespondProblemWithCode(c *gin.Context, status int, code string, detail string) {
	RespondProblem(c, &core.Problem{
		Status: status,
		Title:  http.StatusText(status),
		Detail: detail,
		Extras: map[string]any{"code": code},
	})
}

// RespondError maps err through its core code. Errors without a code are
// reported as internal failures.
func RespondError(c *gin.Context, err error) {
	code := core.ErrorCode(err)
	if code == "" {
		code = ErrInternalCode
	}
	if coreErr, ok := core.AsError(err); ok && coreErr.Err != nil {
		_ = c.Error(coreErr.Err)
	} else if err != nil {
		_ = c.Error(err)
	}
	RespondProblemWithCode(c, StatusForCode(code), code, PublicMessage(err))
}

func writeProblemResponse(c *gin.Context, problem *core.Problem, body map[string]any) {
	logProblem(c, problem)
	payload, err := json.Marshal(body)
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("failed to marshal problem", "err", err)
		fallback := []byte(`{"status":500,"error":"Internal Server Error"}`)
		c.Data(http.StatusInternalServerError, "application/problem+json", fallback)
		c.Abort()
		return
	}
	c.Data(problem.Status, "application/problem+json", payload)
	c.Abort()
}

func logProblem(c *gin.Context, problem *core.Problem) {
	log := logger.FromContext(c.Request.Context())
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	fields := []any{
		"status", problem.Status,
		"title", problem.Title,
		"route", route,
	}
	if code, ok := problem.Extras["code"]; ok {
		fields = append(fields, "code", code)
	}
	if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
		fields = append(fields, "error", core.RedactString(errs.String()))
	}
	if problem.Status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
		return
	}
	log.Warn("request failed", fields...)
}
