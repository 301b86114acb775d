package provider

import (
	"errors"
	"fmt"
)

// ErrorCode is an error code type
type ErrorCode string

const (
	// AuthFailureError is when the backend rejected our credentials.
	// This aborts the whole run, not just the current rule-set.
	AuthFailureError ErrorCode = "AuthFailureError"
	// NotFoundError is when the requested rule-set does not exist
	NotFoundError ErrorCode = "NotFoundError"
	// BadRequestError is when the backend rejected the request shape
	BadRequestError ErrorCode = "BadRequestError"
	// InternalError is when there was an unexpected backend error
	InternalError ErrorCode = "InternalError"
)

// Error is the error type used internally by the backends
type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("Error %s - %s", e.Code, e.Msg)
}

// IsErrAuthFailure returns if error is kind AuthFailureError
func IsErrAuthFailure(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == AuthFailureError
	}
	return false
}

// IsErrNotFound returns if error is kind NotFoundError
func IsErrNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == NotFoundError
	}
	return false
}

// IsErrBadRequest returns if error is kind BadRequestError
func IsErrBadRequest(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == BadRequestError
	}
	return false
}
