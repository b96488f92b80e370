// Package apperr holds the error taxonomy shared by every layer.
// Each error carries a stable Kind that the HTTP boundary maps to a status code.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindDuplicate         Kind = "duplicate"
	KindNotFound          Kind = "not_found"
	KindInvalidCredential Kind = "invalid_credentials"
	KindAccountLocked     Kind = "account_locked"
	KindInvalidOTP        Kind = "invalid_otp"
	KindExpiredOTP        Kind = "expired_otp"
	KindTokenInvalid      Kind = "token_invalid"
	KindTokenExpired      Kind = "token_expired"
	KindCorruptCredential Kind = "corrupt_credential"
	KindInternal          Kind = "internal"
)

// Error is a classified failure. Message is safe to show to API callers;
// Err keeps the internal cause for logs only.
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

// Is matches another *Error of the same kind and message, so sentinels survive Wrap.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

var (
	ErrNotFound           = New(KindNotFound, "account not found")
	ErrDuplicate          = New(KindDuplicate, "account already exists")
	ErrInvalidCredentials = New(KindInvalidCredential, "invalid credentials")
	ErrAccountLocked      = New(KindAccountLocked, "account is locked due to multiple failed login attempts, please try again later")
	ErrAccountInactive    = New(KindAccountLocked, "account is deactivated")
	ErrInvalidOTP         = New(KindInvalidOTP, "invalid OTP")
	ErrExpiredOTP         = New(KindExpiredOTP, "OTP has expired")
	ErrTokenInvalid       = New(KindTokenInvalid, "invalid token")
	ErrTokenExpired       = New(KindTokenExpired, "token has expired")
	ErrCorruptCredential  = New(KindCorruptCredential, "stored credential is corrupt")
)

// Duplicate reports a unique-field collision on the named field.
func Duplicate(field string) *Error {
	return &Error{Kind: KindDuplicate, Message: field + " already in use"}
}

func Validation(msg string) *Error {
	return New(KindValidation, msg)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the caller-safe message for err.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindInternal && ae.Kind != KindCorruptCredential {
		return ae.Message
	}
	return "internal server error"
}

func StatusOf(kind Kind) int {
	switch kind {
	case KindValidation, KindDuplicate, KindInvalidOTP, KindExpiredOTP:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidCredential, KindTokenInvalid, KindTokenExpired:
		return http.StatusUnauthorized
	case KindAccountLocked:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
