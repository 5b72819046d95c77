package utils

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrPrecondition  = errors.New("precondition failed")
	ErrGateway       = errors.New("payment gateway error")
	ErrDatabaseError = errors.New("database error")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidPage        = errors.New("invalid page parameter")
	ErrInvalidPageSize    = errors.New("invalid page size parameter")
)

// AppError carries one of the sentinel kinds above plus a caller-facing
// message. errors.Is(err, ErrConflict) matches through it.
type AppError struct {
	Kind    error
	Message string
	Fields  map[string]string
	Err     error
}

func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *AppError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewValidationError(fields map[string]string) error {
	return &AppError{Kind: ErrValidation, Message: "Invalid input", Fields: fields}
}

func NewUnauthorizedError(msg string) error {
	return &AppError{Kind: ErrUnauthorized, Message: msg}
}

func NewForbiddenError(msg string) error {
	return &AppError{Kind: ErrForbidden, Message: msg}
}

func NewNotFoundError(format string, args ...any) error {
	return &AppError{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...any) error {
	return &AppError{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func NewPreconditionError(format string, args ...any) error {
	return &AppError{Kind: ErrPrecondition, Message: fmt.Sprintf(format, args...)}
}

func NewDatabaseError(err error) error {
	return &AppError{Kind: ErrDatabaseError, Message: "database error", Err: err}
}

// FieldErrors returns the per-field messages of a validation error, or nil.
func FieldErrors(err error) map[string]string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Fields
	}
	return nil
}

// PublicMessage is the message safe to show to callers.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return ""
}
