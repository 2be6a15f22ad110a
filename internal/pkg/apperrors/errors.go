package apperrors

import (
	"errors"
	"net/http"
)

// Kind classifies a domain failure; each kind maps to one HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidState
	KindConflict
	KindUnauthorized
	KindForbidden
	KindValidationFailed
	KindLedger
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindInvalidState:
		return "InvalidState"
	case KindConflict:
		return "Conflict"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindValidationFailed:
		return "ValidationFailed"
	case KindLedger:
		return "LedgerError"
	default:
		return "Internal"
	}
}

// Error is a classified error carrying a user-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string) error { return &Error{Kind: kind, Message: msg} }

func NotFound(msg string) error         { return newErr(KindNotFound, msg) }
func InvalidState(msg string) error     { return newErr(KindInvalidState, msg) }
func Conflict(msg string) error         { return newErr(KindConflict, msg) }
func Unauthorized(msg string) error     { return newErr(KindUnauthorized, msg) }
func Forbidden(msg string) error        { return newErr(KindForbidden, msg) }
func ValidationFailed(msg string) error { return newErr(KindValidationFailed, msg) }

// Ledger wraps a gateway failure. The cause is kept for logs; the message stays generic.
func Ledger(err error) error {
	return &Error{Kind: KindLedger, Message: "Ledger transaction failed", Err: err}
}

// Internal wraps an unexpected failure (store errors and the like).
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of err, KindInternal when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps err to its response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindConflict, KindValidationFailed:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindLedger:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-visible message for err. Internal errors never expose their cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindInternal {
			return "Internal Server Error"
		}
		return e.Message
	}
	return "Internal Server Error"
}
