// Package apperr defines the error taxonomy shared across the engine,
// catalog, store, and HTTP layer. Handlers map these sentinels to status
// codes with errors.Is / errors.As.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing session, exercise, or step.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState signals an operation against a session or exercise
	// whose lifecycle state does not permit it.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidInput signals user-correctable bad input, such as an empty
	// submission or question. No state is mutated.
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden signals that the actor is neither the session's owner nor
	// the resource owner.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict signals a compare-and-swap save that lost to a concurrent
	// writer. The caller must reload and re-check state before retrying.
	ErrConflict = errors.New("version conflict")

	// ErrRubricMissing signals a gradable step on an exercise without a
	// rubric. This is a broken exercise, not a user error.
	ErrRubricMissing = errors.New("exercise has no grading rubric")
)

// CollaboratorError wraps a failed scoring-oracle call. Operations are
// all-or-nothing with respect to these: when one surfaces, the session was
// left exactly as it was before the call.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Collaborator wraps err as a CollaboratorError for the named operation.
func Collaborator(op string, err error) error {
	return &CollaboratorError{Op: op, Err: err}
}

// IsCollaborator reports whether any error in the chain is a
// CollaboratorError.
func IsCollaborator(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
