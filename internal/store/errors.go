package store

import (
	"errors"
	"fmt"
)

// SQLSTATE codes surfaced by every backend.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNotNullViolation    = "23502"
	CodeCheckViolation      = "23514"
)

var (
	ErrNotFound     = errors.New("store: not found")
	ErrUnknownTable = errors.New("store: unknown table")
)

// Error is a backend-reported failure with a machine-readable code.
type Error struct {
	Code    string
	Message string
	Details string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (SQLSTATE %s)", e.Message, e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsDuplicate reports whether err is a unique-constraint violation.
func IsDuplicate(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == CodeUniqueViolation
}
