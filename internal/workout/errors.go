package workout

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates a user-supplied value violated a
	// precondition. Nothing is mutated.
	ErrInvalidInput = errors.New("workout: invalid input")
	// ErrDuplicateExercise indicates the exercise is already present in
	// the draft or routine under edit.
	ErrDuplicateExercise = errors.New("workout: duplicate exercise")
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("workout: not found")
	// ErrSerialization indicates a malformed backup document.
	ErrSerialization = errors.New("workout: malformed backup document")

	errMissingDatabase = errors.New("database handle is required")
)

// StoreError tags a failure with a "<operation>.<reason>" code while
// preserving the underlying cause for errors.Is checks.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

// Code returns the machine-readable error code.
func (e *StoreError) Code() string {
	return e.code
}

func newStoreError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &StoreError{code: code, err: cause}
}
