package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so transports can map them without string matching.
type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindConflict          ErrorKind = "CONFLICT"
	KindStaleJob          ErrorKind = "STALE_JOB"
)

// Sentinels for errors.Is checks. A *Error matches the sentinel of its kind.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrStaleJob          = errors.New("stale job")
)

var sentinels = map[ErrorKind]error{
	KindValidation:        ErrValidation,
	KindNotFound:          ErrNotFound,
	KindInvalidTransition: ErrInvalidTransition,
	KindForbidden:         ErrForbidden,
	KindConflict:          ErrConflict,
	KindStaleJob:          ErrStaleJob,
}

// Error is the typed error returned by services and repositories.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = sentinels[e.Kind].Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// Expected reports whether the error describes a caller-side problem rather
// than an infrastructure failure.
func (e *Error) Expected() bool {
	return e.Kind != KindStaleJob
}

func NewValidationError(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NewNotFound(op, entity string, id any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

func NewInvalidTransition(op string, from, to any) *Error {
	return &Error{Kind: KindInvalidTransition, Op: op, Message: fmt.Sprintf("cannot move from %v to %v", from, to)}
}

func NewForbidden(op, format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NewConflict(op, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NewStaleJob(op, jobID string, err error) *Error {
	return &Error{Kind: KindStaleJob, Op: op, Message: fmt.Sprintf("job %s target vanished", jobID), Err: err}
}

// KindOf extracts the kind of a domain error, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for kind, s := range sentinels {
		if errors.Is(err, s) {
			return kind
		}
	}
	return ""
}
