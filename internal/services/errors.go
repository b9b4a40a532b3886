package services

import (
	"errors"
	"fmt"

	"cookiebarrel/internal/repositories"
)

// ErrorKind is the stable, machine readable category of a service failure.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation_error"
	KindProductUnavailable ErrorKind = "product_unavailable"
	KindInsufficientStock  ErrorKind = "insufficient_stock"
	KindInvalidTransition  ErrorKind = "invalid_transition"
	KindNotFound           ErrorKind = "not_found"
	KindForbidden          ErrorKind = "forbidden"
	KindConflict           ErrorKind = "conflict"
	KindStorage            ErrorKind = "storage_error"
)

// Validation codes.
const (
	CodeMissingFields = "missing_fields"
	CodeInvalidInput  = "invalid_input"
)

var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrProductUnavailable = &Error{Kind: KindProductUnavailable}
	ErrInsufficientStock  = &Error{Kind: KindInsufficientStock}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrStorage            = &Error{Kind: KindStorage}
)

// Error is returned by every service operation. Message is safe to show to
// callers; Err keeps the underlying cause for logs.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Fields  []string

	ProductID string
	Available int
	Requested int

	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// PublicCode is the code rendered to callers: the validation code when set,
// otherwise the kind.
func (e *Error) PublicCode() string {
	if e.Code != "" {
		return e.Code
	}
	return string(e.Kind)
}

func validationError(code, message string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message, Fields: fields}
}

func invalidInput(format string, args ...any) *Error {
	return validationError(CodeInvalidInput, fmt.Sprintf(format, args...))
}

func notFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func forbiddenError(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func invalidTransition(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func storageError(err error) *Error {
	return &Error{Kind: KindStorage, Message: "internal server error", Err: err}
}

// KindOf returns the kind of err, treating unknown errors as storage failures.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindStorage
}

// mapRepositoryError translates persistence failures, naming the missing
// entity for not-found errors.
func mapRepositoryError(err error, entity string) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	switch repositories.CodeOf(err) {
	case repositories.ErrorNotFound:
		return &Error{Kind: KindNotFound, Message: entity + " not found", Err: err}
	case repositories.ErrorConflict:
		return &Error{Kind: KindConflict, Message: entity + " was modified concurrently, retry", Err: err}
	default:
		return storageError(err)
	}
}
