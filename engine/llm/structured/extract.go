package structured

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrNoJSON is returned when the text holds no object start.
	ErrNoJSON = errors.New("no JSON found in response")
	// ErrUnbalanced is returned when braces never close.
	ErrUnbalanced = errors.New("unbalanced JSON object in response")
)

var fencePattern = regexp.MustCompile("(?is)```(?:json)?[ \\t]*\\r?\\n?(.*?)```")

// Extract returns the JSON object text embedded in model output. A fenced
// code block wins; otherwise the first balanced {...} span is used.
func Extract(text string) (string, error) {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		if body := strings.TrimSpace(m[1]); strings.HasPrefix(body, "{") {
			return body, nil
		}
	}
	return scanObject(text)
}

// scanObject walks from the first '{' tracking depth, skipping braces that
// appear inside strings.
func scanObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoJSON
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", ErrUnbalanced
}
