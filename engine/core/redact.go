package core

import (
	"regexp"
	"strings"
)

const maxRedactedLen = 256

var (
	bearerTokenRe = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-\._~\+\/]+=*`)
	kvSecretRe    = regexp.MustCompile(
		`(?i)(api[_-]?key|x-api-key|token|secret|password|pwd|access_token|refresh_token)\s*[:=]\s*["']?[^"'\s]+["']?`,
	)
	providerKeyRe = regexp.MustCompile(`\b(sk-ant-[A-Za-z0-9_\-]{8,}|sk-[A-Za-z0-9_\-]{16,})\b`)
	jwtRe         = regexp.MustCompile(`\b(eyJ[A-Za-z0-9_\-]+\.eyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+)\b`)
	connectionRe  = regexp.MustCompile(
		`(?i)((postgres|postgresql|redis|rediss|https?)://)[^@\s]+@[^\s]+`,
	)
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// RedactString trims, truncates and scrubs secret shapes so the value is safe to log.
func RedactString(s string) string {
	s = strings.TrimSpace(s)
	s = jwtRe.ReplaceAllString(s, "[JWT_REDACTED]")
	s = providerKeyRe.ReplaceAllString(s, "[KEY_REDACTED]")
	s = connectionRe.ReplaceAllString(s, "$1[REDACTED]")
	s = bearerTokenRe.ReplaceAllString(s, "$1[REDACTED]")
	s = kvSecretRe.ReplaceAllString(s, "$1=[REDACTED]")
	s = emailRe.ReplaceAllString(s, "[EMAIL_REDACTED]")
	if len(s) > maxRedactedLen {
		s = s[:maxRedactedLen] + "…"
	}
	return s
}

func RedactError(err error) string {
	if err == nil {
		return ""
	}
	return RedactString(err.Error())
}
