package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnauthenticated     Kind = "unauthenticated"
	KindNotFound            Kind = "not_found"
	KindReplyMismatch       Kind = "reply_mismatch"
	KindValidationFailed    Kind = "validation_failed"
	KindForbidden           Kind = "forbidden"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInternal            Kind = "internal"
)

// Error membawa kind yang stabil + pesan yang bisa ditampilkan ke user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Unauthenticated(msg string) *Error { return New(KindUnauthenticated, msg) }
func NotFound(msg string) *Error        { return New(KindNotFound, msg) }
func ReplyMismatch(msg string) *Error   { return New(KindReplyMismatch, msg) }
func Validation(msg string) *Error      { return New(KindValidationFailed, msg) }
func Forbidden(msg string) *Error       { return New(KindForbidden, msg) }
func Upstream(msg string, err error) *Error {
	return Wrap(KindUpstreamUnavailable, msg, err)
}

// KindOf mengembalikan KindInternal untuk error yang bukan *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing text; internal errors never leak details.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidationFailed, KindReplyMismatch:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
