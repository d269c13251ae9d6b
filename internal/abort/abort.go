package abort

import (
	"errors"
	"fmt"
)

// Code categorizes fatal conditions.
type Code string

const (
	// CodeEncodingFailed indicates a value could not be serialized.
	CodeEncodingFailed Code = "ENCODING_FAILED"

	// CodeDecodingFailed indicates a reply could not be parsed as the expected type.
	CodeDecodingFailed Code = "DECODING_FAILED"

	// CodeBlobMissing indicates a required data blob does not exist.
	CodeBlobMissing Code = "BLOB_MISSING"

	// CodeReentrantFetch indicates a cell's fetch re-entered the same cell.
	CodeReentrantFetch Code = "REENTRANT_FETCH"

	// CodeHostAbort indicates the host terminated the execution.
	CodeHostAbort Code = "HOST_ABORT"
)

// Abort is the payload of a fatal condition.
//
// Abort implements error so that, once recovered at the execution boundary,
// it can be inspected with errors.As like any other error.
type Abort struct {
	// Code identifies the condition category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Cause is the underlying codec or host error, if any.
	Cause error

	// Details contains additional context (primitive name, fact name, ...).
	Details map[string]string
}

// Error implements the error interface.
func (a *Abort) Error() string {
	if a.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", a.Code, a.Message, a.Cause)
	}
	return fmt.Sprintf("%s: %s", a.Code, a.Message)
}

// Unwrap returns the underlying cause.
func (a *Abort) Unwrap() error {
	return a.Cause
}

// New creates an Abort without raising it.
func New(code Code, message string, cause error) *Abort {
	return &Abort{Code: code, Message: message, Cause: cause}
}

// With returns a copy of a carrying an extra detail entry.
func (a *Abort) With(key, value string) *Abort {
	details := make(map[string]string, len(a.Details)+1)
	for k, v := range a.Details {
		details[k] = v
	}
	details[key] = value
	return &Abort{Code: a.Code, Message: a.Message, Cause: a.Cause, Details: details}
}

// Raise terminates the current execution. It never returns.
func Raise(code Code, message string, cause error) {
	panic(New(code, message, cause))
}

// Raisef is Raise with a formatted message and no cause.
func Raisef(code Code, format string, args ...any) {
	panic(New(code, fmt.Sprintf(format, args...), nil))
}

// Throw raises an already constructed Abort.
func Throw(a *Abort) {
	panic(a)
}

// Run executes fn and converts a raised Abort into an error.
//
// Panics that do not carry an *Abort are not ours to interpret and are
// re-raised unchanged.
func Run(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if a, ok := r.(*Abort); ok {
				err = a
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}

// Catch is Run for functions producing a value.
func Catch[T any](fn func() T) (value T, err error) {
	err = Run(func() {
		value = fn()
	})
	return value, err
}

// As extracts an *Abort from err, following wrapped errors.
func As(err error) (*Abort, bool) {
	var a *Abort
	if errors.As(err, &a) {
		return a, true
	}
	return nil, false
}

// Is reports whether err is an Abort with the given code.
func Is(err error, code Code) bool {
	a, ok := As(err)
	return ok && a.Code == code
}
