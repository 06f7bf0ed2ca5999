package registration

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the API can report to a caller.
type Kind string

const (
	KindValidation      Kind = "validation_failure"
	KindDuplicate       Kind = "duplicate_account"
	KindUnverifiedEmail Kind = "unverified_email"
	KindInvalidCreds    Kind = "invalid_credentials"
	KindAccountCreation Kind = "account_creation_failure"
	KindProfileCreation Kind = "profile_creation_failure"
	KindDispatch        Kind = "dispatch_failure"
	KindResetDispatch   Kind = "reset_dispatch_failure"
	KindLogout          Kind = "logout_failure"
)

// ErrResetUnsupported is returned when the configured credential store cannot
// complete password resets itself.
var ErrResetUnsupported = errors.New("password reset completion not supported by credential store")

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

// KindOf returns the taxonomy kind of err, or "" when err did not come from
// this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func invalid(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func failure(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}
