package core

import (
	"errors"
	"fmt"
)

// Error is the coded error carried across package boundaries.
type Error struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

// NewError wraps err with a stable code. A nil err keeps the code as message.
func NewError(err error, code string, details map[string]any) *Error {
	msg := code
	if err != nil {
		msg = err.Error()
	}
	return &Error{Code: code, Message: msg, Details: details, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" || e.Message == e.Code {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AsError extracts the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr, true
	}
	return nil, false
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var coreErr *Error
		if !errors.As(err, &coreErr) {
			return false
		}
		if coreErr.Code == code {
			return true
		}
		err = coreErr.Err
	}
	return false
}

// ErrorCode returns the outermost code in err's chain, or "" when none.
func ErrorCode(err error) string {
	if coreErr, ok := AsError(err); ok {
		return coreErr.Code
	}
	return ""
}
