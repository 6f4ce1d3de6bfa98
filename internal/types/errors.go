package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNoPage        = errors.New("browser page not open")
	ErrEmptySnapshot = errors.New("empty page snapshot")
	ErrInvalidURL    = errors.New("invalid URL")
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrLockHeld      = errors.New("sync lock held by another run")
	ErrRunInProgress = errors.New("sync run already in progress")
)

// NavigationError is returned when the listing page cannot be loaded or does
// not reach network idle within its timeout. It fails the whole attempt.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation error for %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ExtractionError wraps a failure while extracting a single product element.
// The element is dropped; the pass continues.
type ExtractionError struct {
	Index int
	Field string
	Err   error
}

func (e *ExtractionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("extraction error at element %d (field=%s): %v", e.Index, e.Field, e.Err)
	}
	return fmt.Sprintf("extraction error at element %d: %v", e.Index, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PersistenceError wraps transaction and write failures. The batch it
// belongs to has been rolled back when this is returned.
type PersistenceError struct {
	Op         string
	ProductURL string
	Err        error
}

func (e *PersistenceError) Error() string {
	if e.ProductURL != "" {
		return fmt.Sprintf("persistence error (%s %s): %v", e.Op, e.ProductURL, e.Err)
	}
	return fmt.Sprintf("persistence error (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
