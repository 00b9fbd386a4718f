// Package apperr defines the error kinds shared by the task, tag, sub-task
// and classification layers. Every error that leaves a component boundary is
// an *Error carrying one of these kinds, so adapters can map outcomes without
// inspecting transport or driver errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind string

const (
	NotFound                  Kind = "not_found"
	ValidationFailure         Kind = "validation_failure"
	ClassificationUnavailable Kind = "classification_unavailable"
	NoMatch                   Kind = "no_match"
	AlreadyDecomposed         Kind = "already_decomposed"
	StoreFailure              Kind = "store_failure"
	NoopUpdate                Kind = "noop_update"
)

// Error is a classified error.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "task.get"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is an *Error of the same kind with no
// message, which lets callers compare against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound                  = &Error{Kind: NotFound}
	ErrValidation                = &Error{Kind: ValidationFailure}
	ErrClassificationUnavailable = &Error{Kind: ClassificationUnavailable}
	ErrNoMatch                   = &Error{Kind: NoMatch}
	ErrAlreadyDecomposed         = &Error{Kind: AlreadyDecomposed}
	ErrStoreFailure              = &Error{Kind: StoreFailure}
	ErrNoopUpdate                = &Error{Kind: NoopUpdate}
)

// E builds an *Error with a formatted message.
func E(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. A nil err yields nil. An err that is already
// an *Error keeps its original kind.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or StoreFailure for unclassified errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return StoreFailure
}

// HTTPStatus maps a kind onto the status code an HTTP adapter must return.
func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case ValidationFailure, NoopUpdate, AlreadyDecomposed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
