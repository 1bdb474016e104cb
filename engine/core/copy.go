package core

import (
	"fmt"

	"github.com/mohae/deepcopy"
)

// DeepCopy returns a deep copy of v. Unexported fields are not copied.
func DeepCopy[T any](v T) (T, error) {
	var zero T
	copied := deepcopy.Copy(v)
	if copied == nil {
		return zero, nil
	}
	result, ok := copied.(T)
	if !ok {
		return zero, fmt.Errorf("failed to cast copied value to type %T", zero)
	}
	return result, nil
}

// CopyMaps merges maps left to right into a fresh map.
func CopyMaps(maps ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
