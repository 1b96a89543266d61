package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller-facing layer.
type Kind string

const (
	// KindValidation means the caller supplied input that cannot be normalized. Not retryable.
	KindValidation Kind = "validation"

	// KindProviderUnavailable means an external store failed. The whole operation may be retried.
	KindProviderUnavailable Kind = "provider_unavailable"

	// KindNotFound means nothing matched the caller's details.
	KindNotFound Kind = "not_found"

	// KindPartialFailure means the durable side effect happened but an advisory step did not.
	KindPartialFailure Kind = "partial_failure"

	// KindInternal is an unexpected failure inside the engine.
	KindInternal Kind = "internal"
)

// Error is the typed error returned by every public engine operation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

func ProviderUnavailable(op, message string, err error) *Error {
	return &Error{Kind: KindProviderUnavailable, Op: op, Message: message, Err: err}
}

// NotFound carries the caller-supplied details back so they can be re-verified.
func NotFound(op, message string, details map[string]string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message, Details: details}
}

func PartialFailure(op, message string, err error) *Error {
	return &Error{Kind: KindPartialFailure, Op: op, Message: message, Err: err}
}

func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: "unexpected internal error", Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal
// for any other non-nil error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
