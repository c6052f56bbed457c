package rfi

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientUnsupported is returned when a manual cut is added to a
	// registry built with per-segment (transient) masks.
	ErrTransientUnsupported = errors.New("manual cuts are not supported with transient masks")

	// ErrEmptyRegistry is returned when editing a registry that holds no
	// segments, such as the result of a rejected detection.
	ErrEmptyRegistry = errors.New("registry has no segments")

	// ErrEmptyChannel is returned when an automatic mask cannot be derived
	// because neither enclosing coarse channel holds a valid sample.
	ErrEmptyChannel = errors.New("no valid samples in enclosing coarse channels")
)

// ValidationError reports a detection or editing parameter that violates a
// precondition. Detection stops and returns an empty registry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// GeometryError reports a flagged bin that does not fall inside exactly one
// coarse-channel range of its segment. It indicates an internal defect rather
// than bad input.
type GeometryError struct {
	Bin     int
	Segment int
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("bin %d is outside the channel layout of segment %d", e.Bin, e.Segment)
}
