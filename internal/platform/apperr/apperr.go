// Package apperr defines the error taxonomy shared by the workflow engine.
// Handlers map these onto HTTP status codes; services return them so that
// callers can branch with errors.As without string matching.
package apperr

import "fmt"

// ValidationError reports malformed or incomplete input. No state change.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ForbiddenError reports a role attempting an action outside its permission
// set for the document's current status.
type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string { return e.Msg }

// Forbidden builds a ForbiddenError from a format string.
func Forbidden(format string, args ...interface{}) error {
	return &ForbiddenError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports a version mismatch on a compare-and-swap write.
// CurrentVersion carries the version the store holds now so the caller can
// reload and reapply its intent.
type ConflictError struct {
	ExpectedVersion int
	CurrentVersion  int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected version %d but resource is at version %d",
		e.ExpectedVersion, e.CurrentVersion)
}

// NotFoundError reports an unknown entity id.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// AuthenticationError reports a failed e-signature credential check.
type AuthenticationError struct {
	Msg string
}

func (e *AuthenticationError) Error() string { return e.Msg }

// Authentication builds an AuthenticationError from a format string.
func Authentication(format string, args ...interface{}) error {
	return &AuthenticationError{Msg: fmt.Sprintf(format, args...)}
}
