// Package faults defines the caller-facing fault kinds of the lending service.
//
// Services return *Error values; the HTTP layer maps them with StatusOf:
//
//	if errors.Is(err, faults.ErrBookConflict) { ... }
//	c.JSON(faults.StatusOf(err), gin.H{"error": err.Error(), "code": faults.KindOf(err)})
package faults

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindBookNotFound        Kind = "BOOK_NOT_FOUND"
	KindAccountNotFound     Kind = "ACCOUNT_NOT_FOUND"
	KindAuthorNotFound      Kind = "AUTHOR_NOT_FOUND"
	KindReservationNotFound Kind = "RESERVATION_NOT_FOUND"
	KindBookConflict        Kind = "BOOK_CONFLICT"
	KindReservationConflict Kind = "RESERVATION_CONFLICT"
	KindAccountConflict     Kind = "ACCOUNT_CONFLICT"
	KindInvalidInput        Kind = "INVALID_INPUT"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindForbidden           Kind = "FORBIDDEN"
	KindInternal            Kind = "INTERNAL"
)

func (k Kind) HTTPStatus() int {
	switch k {
	case KindBookNotFound, KindAccountNotFound, KindAuthorNotFound, KindReservationNotFound:
		return http.StatusNotFound
	case KindBookConflict, KindReservationConflict, KindAccountConflict:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func (e *Error) WithCause(err error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, cause: err}
}

var (
	ErrBookNotFound        = &Error{Kind: KindBookNotFound, Message: "book not found"}
	ErrAccountNotFound     = &Error{Kind: KindAccountNotFound, Message: "account not found"}
	ErrAuthorNotFound      = &Error{Kind: KindAuthorNotFound, Message: "author not found"}
	ErrReservationNotFound = &Error{Kind: KindReservationNotFound, Message: "reservation not found"}
	ErrBookConflict        = &Error{Kind: KindBookConflict, Message: "book conflict"}
	ErrReservationConflict = &Error{Kind: KindReservationConflict, Message: "reservation conflict"}
	ErrAccountConflict     = &Error{Kind: KindAccountConflict, Message: "account conflict"}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrForbidden           = &Error{Kind: KindForbidden, Message: "forbidden"}
)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func BookNotFound(isbn string) *Error {
	return Newf(KindBookNotFound, "book %s not found", isbn)
}

func AccountNotFound(id string) *Error {
	return Newf(KindAccountNotFound, "account %s not found", id)
}

func BookConflict(msg string) *Error {
	return New(KindBookConflict, msg)
}

func ReservationNotFound(msg string) *Error {
	return New(KindReservationNotFound, msg)
}

func ReservationConflict(msg string) *Error {
	return New(KindReservationConflict, msg)
}

func InvalidInput(msg string) *Error {
	return New(KindInvalidInput, msg)
}

// KindOf returns the kind carried by err, or KindInternal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

func StatusOf(err error) int {
	return KindOf(err).HTTPStatus()
}
