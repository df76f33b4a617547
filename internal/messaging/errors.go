package messaging

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrThreadTooDeep = errors.New("thread exceeds maximum depth")
	ErrThreadCycle   = errors.New("thread contains a reply cycle")
)

// ValidationError reports malformed input per field.
type ValidationError struct {
	Fields map[string]string
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
