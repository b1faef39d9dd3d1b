package service

import (
	"errors"

	"passiflora/internal/server/auth"
)

// Sentinel errors for the service layer. Handlers map them to status codes
// with errors.Is; wrapped causes stay internal.
var (
	ErrUnauthorized = auth.ErrUnauthorized
	ErrForbidden    = auth.ErrForbidden
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal server error")

	ErrInvalidCredentials = &publicError{err: ErrUnauthorized, msg: "invalid credentials"}
	ErrUserTaken          = &publicError{err: ErrConflict, msg: "email or username already taken"}
	ErrFileNotFound       = &publicError{err: ErrNotFound, msg: "file not found"}
)

// publicError pairs a sentinel with a message that is safe to return to
// the client.
type publicError struct {
	err error
	msg string
}

func (e *publicError) Error() string { return e.msg }
func (e *publicError) Unwrap() error { return e.err }

// BadRequestError is a client error with a reason that is safe to return.
type BadRequestError struct {
	Reason string
	Err    error
}

func (e *BadRequestError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *BadRequestError) Unwrap() error { return e.Err }

func (e *BadRequestError) Is(target error) bool { return target == ErrBadRequest }

// PublicMessage returns the client-facing text for err, or "" when err
// carries nothing beyond its sentinel.
func PublicMessage(err error) string {
	var bad *BadRequestError
	if errors.As(err, &bad) {
		return bad.Reason
	}
	var pub *publicError
	if errors.As(err, &pub) {
		return pub.msg
	}
	return ""
}
