package flow

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedEvent marks an event that does not fit the user's current step.
	ErrUnexpectedEvent = errors.New("unexpected event for current step")
	// ErrInvalidFloor is the cause of a floor ValidationError.
	ErrInvalidFloor = errors.New("floor must contain digits only")
)

// ValidationError reports rejected user input. The step does not advance.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
