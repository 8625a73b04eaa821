package usecase

import (
	"errors"
	"fmt"
)

// Kind classifies workflow failures. Kinds are stable and safe to expose to clients.
type Kind string

const (
	KindValidation           Kind = "ValidationError"
	KindDuplicateEmail       Kind = "DuplicateEmail"
	KindNotFound             Kind = "NotFound"
	KindAlreadyVerified      Kind = "AlreadyVerified"
	KindInvalidCredentials   Kind = "InvalidCredentials"
	KindEmailNotVerified     Kind = "EmailNotVerified"
	KindInvalidOrExpiredCode Kind = "InvalidOrExpiredCode"
	KindWrongPassword        Kind = "WrongPassword"
	KindSamePassword         Kind = "SamePassword"
	KindPasswordReused       Kind = "PasswordReused"
	KindUnauthorized         Kind = "Unauthorized"
	KindInternal             Kind = "InternalError"
)

// Error is a workflow failure with a user-safe message. Err carries the
// underlying cause and is never shown to clients.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation           = &Error{Kind: KindValidation, Message: "Invalid input"}
	ErrDuplicateEmail       = &Error{Kind: KindDuplicateEmail, Message: "This email is already registered. Please login or use a different email"}
	ErrNotFound             = &Error{Kind: KindNotFound, Message: "User not found"}
	ErrAlreadyVerified      = &Error{Kind: KindAlreadyVerified, Message: "Email is already verified"}
	ErrInvalidCredentials   = &Error{Kind: KindInvalidCredentials, Message: "Invalid email or password"}
	ErrEmailNotVerified     = &Error{Kind: KindEmailNotVerified, Message: "Please verify your email before logging in"}
	ErrInvalidOrExpiredCode = &Error{Kind: KindInvalidOrExpiredCode, Message: "Invalid or expired verification code"}
	ErrWrongPassword        = &Error{Kind: KindWrongPassword, Message: "Incorrect password"}
	ErrSamePassword         = &Error{Kind: KindSamePassword, Message: "New password must be different from current password"}
	ErrPasswordReused       = &Error{Kind: KindPasswordReused, Message: "Please use a password you haven't used recently"}
	ErrUnauthorized         = &Error{Kind: KindUnauthorized, Message: "Not authorized"}
	ErrInternal             = &Error{Kind: KindInternal, Message: "An error occurred. Please try again later."}
)

func validationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Field: field}
}

func invalidResetCredentials() *Error {
	return &Error{Kind: KindInvalidOrExpiredCode, Message: "Invalid or expired reset credentials"}
}

func wrongCurrentPassword() *Error {
	return &Error{Kind: KindWrongPassword, Message: "Current password is incorrect"}
}

func internalError(message string, err error) *Error {
	if message == "" {
		message = ErrInternal.Message
	}
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for errors that are not workflow errors.
func KindOf(err error) Kind {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr.Kind
	}
	return KindInternal
}
