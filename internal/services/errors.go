package services

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller: it decides whether the user can
// retry and which status the transport layer answers with.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindNotFound         Kind = "not_found"
	KindExpired          Kind = "expired"
	KindMismatch         Kind = "mismatch"
	KindConflict         Kind = "conflict"
	KindUnauthorized     Kind = "unauthorized"
	KindTransportFailure Kind = "transport_failure"
	KindInternal         Kind = "internal"
)

// Error is a user-facing failure. Two Errors match under errors.Is when their
// codes are equal, so wrapped variants still compare to the sentinels below.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

var (
	ErrInvalidInput       = &Error{Kind: KindInvalidInput, Code: "invalid_input", Message: "Invalid input data."}
	ErrPasswordMismatch   = &Error{Kind: KindInvalidInput, Code: "password_mismatch", Message: "Both of the passwords have to be matched."}
	ErrUserNotFound       = &Error{Kind: KindNotFound, Code: "user_not_found", Message: "User not found. Register yourself first!"}
	ErrBadPassword        = &Error{Kind: KindMismatch, Code: "bad_password", Message: "Invalid Credentials!"}
	ErrInvalidCode        = &Error{Kind: KindMismatch, Code: "invalid_code", Message: "Invalid code!"}
	ErrCodeExpired        = &Error{Kind: KindExpired, Code: "code_expired", Message: "Code has expired!"}
	ErrTokenNotFound      = &Error{Kind: KindNotFound, Code: "token_not_found", Message: "Token does not exist!"}
	ErrTokenExpired       = &Error{Kind: KindExpired, Code: "token_expired", Message: "Token has expired!"}
	ErrEmailTaken         = &Error{Kind: KindConflict, Code: "email_taken", Message: "User already exists or email is currently in use!"}
	ErrAccountNotLinked   = &Error{Kind: KindConflict, Code: "account_not_linked", Message: "Email already in use with a different sign-in method!"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Code: "unauthorized", Message: "Unauthorized!"}
	ErrUnknownProvider    = &Error{Kind: KindNotFound, Code: "unknown_provider", Message: "Unknown sign-in provider."}
	ErrInvalidState       = &Error{Kind: KindMismatch, Code: "invalid_state", Message: "Sign-in request expired, please try again."}
	ErrNotificationFailed = &Error{Kind: KindTransportFailure, Code: "notification_failed", Message: "Some error occurred while sending mail, please request a new one."}
	ErrInternal           = &Error{Kind: KindInternal, Code: "internal", Message: "Something went wrong!"}
)

// AsError extracts the user-facing error, or reports false for anything that
// must not cross the operation boundary as is.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func internal(err error) error {
	return ErrInternal.wrap(err)
}

func notificationFailed(err error) error {
	return ErrNotificationFailed.wrap(err)
}
