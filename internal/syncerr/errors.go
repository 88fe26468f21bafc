// Package syncerr classifies failures raised while persisting or mirroring step counts.
package syncerr

import (
	"errors"
	"fmt"
)

// Code identifies the failure class.
type Code string

const (
	CodeStorage    Code = "STORAGE_FAILURE"
	CodeNetwork    Code = "NETWORK_FAILURE"
	CodeRejected   Code = "REMOTE_REJECTED"
	CodeValidation Code = "VALIDATION_FAILURE"
)

// Op names the operation during which an error occurred.
type Op string

const (
	OpInsert Op = "insert"
	OpLoad   Op = "load"
	OpPost   Op = "post"
	OpList   Op = "list"
	OpPush   Op = "push"
	OpOpen   Op = "open"
)

// Error is the error type returned by the store and the remote sinks.
type Error struct {
	Op        Op
	Component string
	Code      Code
	Err       error
	// Retryable is informational only; nothing in the sync path retries.
	Retryable bool
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s failed", e.Op)
	if e.Component != "" {
		msg = fmt.Sprintf("%s failed in %s", e.Op, e.Component)
	}
	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewStorageError wraps a local store failure.
func NewStorageError(op Op, cause error) *Error {
	return &Error{Op: op, Component: "store", Code: CodeStorage, Err: cause, Retryable: true}
}

// NewNetworkError wraps a transport level failure talking to a remote sink.
func NewNetworkError(op Op, component string, cause error) *Error {
	return &Error{Op: op, Component: component, Code: CodeNetwork, Err: cause, Retryable: true}
}

// NewRejectedError wraps a remote sink answering with an error response.
func NewRejectedError(op Op, component string, cause error) *Error {
	return &Error{Op: op, Component: component, Code: CodeRejected, Err: cause}
}

// NewValidationError wraps invalid input.
func NewValidationError(op Op, cause error) *Error {
	return &Error{Op: op, Code: CodeValidation, Err: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "" when there is none.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsRetryable reports whether err carries a retryable classification.
func IsRetryable(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}
