package llmadapter

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeCapacityError      ErrorCode = "CAPACITY"
	ErrCodeInternalServer     ErrorCode = "INTERNAL_SERVER"
	ErrCodeBadGateway         ErrorCode = "BAD_GATEWAY"
	ErrCodeGatewayTimeout     ErrorCode = "GATEWAY_TIMEOUT"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeConnectionReset    ErrorCode = "CONNECTION_RESET"
	ErrCodeConnectionRefused  ErrorCode = "CONNECTION_REFUSED"
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeInvalidModel       ErrorCode = "INVALID_MODEL"
	ErrCodeContentPolicy      ErrorCode = "CONTENT_POLICY"
	ErrCodeQuotaExceeded      ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeUnknown            ErrorCode = "UNKNOWN"
)

// Error is a provider error classified into a stable code.
type Error struct {
	Code       ErrorCode
	HTTPStatus int
	Provider   string
	Message    string
	Err        error
}

func codeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusTooManyRequests:
		return ErrCodeRateLimit
	case http.StatusServiceUnavailable:
		return ErrCodeServiceUnavailable
	case 529:
		return ErrCodeCapacityError
	case http.StatusInternalServerError:
		return ErrCodeInternalServer
	case http.StatusBadGateway:
		return ErrCodeBadGateway
	case http.StatusGatewayTimeout:
		return ErrCodeGatewayTimeout
	case http.StatusRequestTimeout:
		return ErrCodeTimeout
	case http.StatusBadRequest:
		return ErrCodeBadRequest
	case http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case http.StatusForbidden:
		return ErrCodeForbidden
	case http.StatusNotFound:
		return ErrCodeNotFound
	default:
		return ErrCodeUnknown
	}
}

// NewError classifies an HTTP status returned by provider.
func NewError(status int, message, provider string, err error) *Error {
	return &Error{
		Code:       codeForStatus(status),
		HTTPStatus: status,
		Provider:   provider,
		Message:    message,
		Err:        err,
	}
}

func NewErrorWithCode(code ErrorCode, message, provider string, err error) *Error {
	return &Error{Code: code, Provider: provider, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s %s (status %d): %s", e.Provider, e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is likely to clear on its own.
func (e *Error) Retryable() bool {
	switch e.Code {
	case ErrCodeRateLimit,
		ErrCodeServiceUnavailable,
		ErrCodeCapacityError,
		ErrCodeInternalServer,
		ErrCodeBadGateway,
		ErrCodeGatewayTimeout,
		ErrCodeTimeout,
		ErrCodeConnectionReset,
		ErrCodeConnectionRefused:
		return true
	default:
		return false
	}
}

// IsLLMError extracts an *Error from err's chain.
func IsLLMError(err error) (*Error, bool) {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr, true
	}
	return nil, false
}

// Classify returns err wrapped as an *Error when its message matches a
// known pattern, err unchanged otherwise.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := IsLLMError(err); ok {
		return err
	}
	if parsed := NewErrorParser(provider).ParseError(err); parsed != nil {
		return parsed
	}
	return err
}
