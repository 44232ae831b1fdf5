package tasks

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no task carries the requested id.
var ErrNotFound = errors.New("task not found")

// ValidationError names an input field that is malformed or out of domain.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// RemoteError carries a failure reported by the AI provider. Message is the
// provider's text, passed through unchanged.
type RemoteError struct {
	Operation string
	Message   string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// ParseError is returned when a model answer cannot be converted to the
// expected type.
type ParseError struct {
	What  string
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("could not parse %s from %q: %v", e.What, e.Input, e.Err)
	}
	return fmt.Sprintf("could not parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsRemote reports whether err is or wraps a *RemoteError.
func IsRemote(err error) bool {
	var target *RemoteError
	return errors.As(err, &target)
}

// IsParse reports whether err is or wraps a *ParseError.
func IsParse(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}
