package session

import (
	"errors"
	"fmt"
)

// ErrCrashRecoveryDetected signals that the previous launch set the load flag
// and never cleared it. It is a condition requiring a user decision, not a
// failure.
var ErrCrashRecoveryDetected = errors.New("previous launch did not finish loading its patch")

// ErrNoPath is returned by SaveLast when no user path has been chosen.
var ErrNoPath = errors.New("no patch path chosen")

// LoadError reports a patch that could not be loaded. The session continues
// with an empty working document.
type LoadError struct {
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load patch %s: %v", e.Path, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// SaveError reports a patch that could not be written.
type SaveError struct {
	Path  string
	Cause error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save patch %s: %v", e.Path, e.Cause)
}

func (e *SaveError) Unwrap() error { return e.Cause }
