package router

import (
	"net/http"

	"github.com/repcoach/repcoach/engine/core"
)

// Error codes used by the HTTP layer itself.
const (
	ErrInternalCode           = "INTERNAL_ERROR"
	ErrBadRequestCode         = "BAD_REQUEST"
	ErrRateLimitedCode        = "RATE_LIMITED"
	ErrServiceUnavailableCode = "SERVICE_UNAVAILABLE"
)

const (
	msgTryAgain = "The coach is temporarily unavailable. Please try again."
	msgInternal = "Something went wrong. Please try again."
)

// StatusForCode maps a core error code to its HTTP status.
func StatusForCode(code string) int {
	switch code {
	case core.CodeInvalidRequest, core.CodeToolInvalidInput:
		return http.StatusBadRequest
	case core.CodeUnauthorized:
		return http.StatusUnauthorized
	case core.CodeForbidden:
		return http.StatusForbidden
	case core.CodeNotFound:
		return http.StatusNotFound
	case core.CodeValidationFailed, core.CodeExtractionFailed:
		return http.StatusUnprocessableEntity
	case core.CodeLLMTransient, core.CodeLLMGeneration, core.CodeProtocolViolation, core.CodeLoopExhausted:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the detail shown to callers for err. Upstream and
// internal failures collapse to a generic retry message.
func PublicMessage(err error) string {
	coreErr, ok := core.AsError(err)
	if !ok {
		return msgInternal
	}
	status := StatusForCode(coreErr.Code)
	switch {
	case status == http.StatusBadGateway:
		return msgTryAgain
	case status >= http.StatusInternalServerError:
		return msgInternal
	}
	if coreErr.Err != nil {
		return core.RedactError(coreErr.Err)
	}
	return core.RedactString(coreErr.Message)
}
