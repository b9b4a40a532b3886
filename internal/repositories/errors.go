package repositories

import (
	"errors"
	"fmt"
)

// ErrorCode classifies persistence failures for the service layer.
type ErrorCode string

const (
	ErrorNotFound    ErrorCode = "not_found"
	ErrorConflict    ErrorCode = "conflict"
	ErrorDuplicate   ErrorCode = "duplicate"
	ErrorUnavailable ErrorCode = "unavailable"
)

// Error wraps store failures with a machine readable code.
type Error struct {
	Op      string
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewError(op string, code ErrorCode, message string, err error) *Error {
	return &Error{Op: op, Code: code, Message: message, Err: err}
}

func NotFound(op, message string) *Error {
	return NewError(op, ErrorNotFound, message, nil)
}

func Unavailable(op string, err error) *Error {
	return NewError(op, ErrorUnavailable, "store unavailable", err)
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return repoErr.Code
	}
	return ""
}

func IsNotFound(err error) bool  { return CodeOf(err) == ErrorNotFound }
func IsConflict(err error) bool  { return CodeOf(err) == ErrorConflict }
func IsDuplicate(err error) bool { return CodeOf(err) == ErrorDuplicate }

// Fields named by duplicate errors.
const (
	FieldOrderNumber    = "orderNumber"
	FieldIdempotencyKey = "idempotencyKey"
)

func Duplicate(op, field string, err error) *Error {
	return NewError(op, ErrorDuplicate, field, err)
}

// IsDuplicateField reports a duplicate error raised for the given field.
func IsDuplicateField(err error, field string) bool {
	var repoErr *Error
	return errors.As(err, &repoErr) && repoErr.Code == ErrorDuplicate && repoErr.Message == field
}
