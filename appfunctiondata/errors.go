package appfunctiondata

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is the root of every caller-facing validation
	// failure: undeclared keys, shape mismatches, enum violations, storage
	// representation mismatches and nested shape mismatches.
	ErrInvalidArgument = errors.New("appfunctiondata: invalid argument")

	// ErrIllegalState signals a broken internal invariant, such as a stored
	// int outside the 32-bit range or a reference missing from the
	// components table.
	ErrIllegalState = errors.New("appfunctiondata: illegal state")

	// ErrSerialization is returned by the Registry when a value cannot be
	// converted to or from a container.
	ErrSerialization = errors.New("appfunctiondata: serialization failed")
)

// InvalidArgumentError describes a rejected read or write.
type InvalidArgumentError struct {
	Key    string // property key, empty when not tied to one
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("invalid argument at %s: %s", e.Key, e.Reason)
	}
	return "invalid argument: " + e.Reason
}

// Unwrap lets errors.Is match ErrInvalidArgument.
func (e *InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }

func invalidArgf(key, format string, args ...any) error {
	return &InvalidArgumentError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

func illegalStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalState, fmt.Sprintf(format, args...))
}
