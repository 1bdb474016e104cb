package llmadapter

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// ErrorParser extracts and classifies errors from provider messages.
type ErrorParser struct {
	provider string
}

func NewErrorParser(provider string) *ErrorParser {
	return &ErrorParser{provider: provider}
}

var statusCodePattern = regexp.MustCompile(`(?i)(?:status(?: code)?[:= ]\s*|http |error |api error )([1-5]\d\d)\b`)

type messagePattern struct {
	code     ErrorCode
	status   int
	patterns []string
}

// messagePatterns is checked in order; the first match wins.
var messagePatterns = []messagePattern{
	{code: ErrCodeRateLimit, status: http.StatusTooManyRequests, patterns: []string{
		"rate limit", "rate-limit", "ratelimit", "rate_limit_error", "too many requests",
		"throttled", "throttling", "requests per minute",
	}},
	{code: ErrCodeCapacityError, patterns: []string{"overloaded", "capacity", "overloaded_error"}},
	{code: ErrCodeServiceUnavailable, status: http.StatusServiceUnavailable, patterns: []string{
		"service unavailable", "service_unavailable", "temporarily unavailable", "try again later",
	}},
	{code: ErrCodeQuotaExceeded, patterns: []string{"insufficient_quota", "quota exceeded", "credit balance"}},
	{code: ErrCodeUnauthorized, status: http.StatusUnauthorized, patterns: []string{
		"unauthorized", "invalid api key", "invalid_api_key", "invalid x-api-key", "authentication_error",
	}},
	{code: ErrCodeInvalidModel, patterns: []string{"invalid model", "model not found", "not_found_error: model"}},
	{code: ErrCodeContentPolicy, patterns: []string{"content policy", "content_policy"}},
	{code: ErrCodeTimeout, patterns: []string{"timeout", "timed out", "deadline exceeded"}},
	{code: ErrCodeConnectionReset, patterns: []string{
		"econnreset", "connection reset", "socket hang up", "broken pipe", "unexpected eof", "eof",
	}},
	{code: ErrCodeConnectionRefused, patterns: []string{
		"econnrefused", "connection refused", "network error", "no such host",
	}},
}

// ParseError returns a classified *Error, or nil when nothing matches.
func (p *ErrorParser) ParseError(err error) *Error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if status := p.extractHTTPStatusCode(lower); status > 0 {
		return NewError(status, msg, p.provider, err)
	}
	for _, mp := range messagePatterns {
		for _, pattern := range mp.patterns {
			if !strings.Contains(lower, pattern) {
				continue
			}
			if mp.status > 0 {
				llmErr := NewError(mp.status, msg, p.provider, err)
				llmErr.Code = mp.code
				return llmErr
			}
			return NewErrorWithCode(mp.code, msg, p.provider, err)
		}
	}
	return nil
}

// extractHTTPStatusCode finds codes in forms like "status code: 429" or "HTTP 503".
func (p *ErrorParser) extractHTTPStatusCode(msg string) int {
	match := statusCodePattern.FindStringSubmatch(msg)
	if len(match) < 2 {
		return 0
	}
	code, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return code
}
