package cache

import "errors"

// ErrNotFound is returned by every tier on a miss.
var ErrNotFound = errors.New("cache: not found")
