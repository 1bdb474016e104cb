package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"

	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
	"github.com/repcoach/repcoach/pkg/logger"
)

// transientPattern matches upstream failures worth another attempt.
var transientPattern = regexp.MustCompile(
	`(?i)(overloaded|capacity|rate.?limit|too many requests|\b429\b|timeout|timed out|` +
		`econnreset|connection reset|econnrefused|connection refused|socket hang up|\beof\b|` +
		`\b50[0234]\b|bad gateway|service unavailable|gateway timeout)`,
)

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var retryable interface{ Retryable() bool }
	if errors.As(err, &retryable) {
		return retryable.Retryable()
	}
	return transientPattern.MatchString(err.Error())
}

func isTransientWithContext(ctx context.Context, err error) bool {
	transient := IsTransient(err)
	fields := []any{
		"error_type", fmt.Sprintf("%T", err),
		"retryable", transient,
	}
	if llmErr, ok := llmadapter.IsLLMError(err); ok {
		fields = append(fields,
			"llm_error_code", string(llmErr.Code),
			"http_status", llmErr.HTTPStatus,
			"provider", llmErr.Provider,
		)
	}
	log := logger.FromContext(ctx)
	if transient {
		log.Debug("Error is retryable, will retry", fields...)
	} else {
		log.Debug("Error is not retryable", fields...)
	}
	return transient
}
