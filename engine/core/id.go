package core

import (
	"errors"
	"fmt"

	"github.com/segmentio/ksuid"
)

// ID identifies service-owned records (audit rows, tool correlation ids).
type ID string

func (c ID) String() string {
	return string(c)
}

func (c ID) IsZero() bool {
	return c == ""
}

func NewID() (ID, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}
	return ID(id.String()), nil
}

func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

func ParseID(s string) (ID, error) {
	if s == "" {
		return "", errors.New("empty ID")
	}
	parsed, err := ksuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid ID format: %w", err)
	}
	return ID(parsed.String()), nil
}
