package repositories

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
)

// ConflictError names the field that collided with an existing record so
// handlers can tell callers what to change. It unwraps to ErrConflict.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already in use", e.Field)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// conflictOn maps a unique-constraint name to the colliding field.
func conflictOn(constraint string) *ConflictError {
	switch constraint {
	case "users_username_key":
		return &ConflictError{Field: "username"}
	case "users_email_key":
		return &ConflictError{Field: "email"}
	}
	return &ConflictError{Field: "record"}
}
