package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures and degraded outcomes.
type Kind string

const (
	KindNotFound            Kind = "NOT_FOUND"
	KindMalformedInput      Kind = "MALFORMED_INPUT"
	KindRowTimestampInvalid Kind = "ROW_TIMESTAMP_INVALID"
	KindEmptyResult         Kind = "EMPTY_RESULT"
)

// Sentinels for errors.Is. Only the two file-level kinds are ever returned as errors;
// row-level timestamp failures and empty results are reported through Stats.
var (
	ErrNotFound       = errors.New("input file not found")
	ErrMalformedInput = errors.New("malformed input")
)

// Error is a file-level pipeline failure. It aborts the run.
type Error struct {
	Kind    Kind
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Kind, e.Path, e.Message)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrMalformedInput:
		return e.Kind == KindMalformedInput
	}
	return false
}

func notFound(path string, cause error) *Error {
	return &Error{Kind: KindNotFound, Path: path, Message: "input file does not exist", Cause: cause}
}

func malformed(path string, format string, args ...any) *Error {
	return &Error{Kind: KindMalformedInput, Path: path, Message: fmt.Sprintf(format, args...)}
}

func malformedCause(path string, cause error, format string, args ...any) *Error {
	e := malformed(path, format, args...)
	e.Cause = cause
	return e
}

// KindOf reports the Kind carried by err, or "" when err is not a pipeline error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
