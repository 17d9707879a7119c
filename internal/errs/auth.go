package errs

import (
	"errors"
	"fmt"
)

// AuthCode is an identity-provider error code.
type AuthCode string

// Sign-in codes.
const (
	CodeInvalidEmail    AuthCode = "auth/invalid-email"
	CodeUserDisabled    AuthCode = "auth/user-disabled"
	CodeUserNotFound    AuthCode = "auth/user-not-found"
	CodeWrongPassword   AuthCode = "auth/wrong-password"
	CodeTooManyRequests AuthCode = "auth/too-many-requests"
	CodeEmailInUse      AuthCode = "auth/email-already-in-use"
	CodeWeakPassword    AuthCode = "auth/weak-password"
)

// Sign-out and token codes.
const (
	CodeInvalidUserToken AuthCode = "auth/invalid-user-token"
	CodeUserTokenExpired AuthCode = "auth/user-token-expired"
	CodeNullUser         AuthCode = "auth/null-user"
	CodeInvalidResetCode AuthCode = "auth/invalid-action-code"
)

// CodeUnknown is used when the provider failed without a recognised code.
const CodeUnknown AuthCode = "auth/unknown"

var known = map[AuthCode]struct{}{
	CodeInvalidEmail: {}, CodeUserDisabled: {}, CodeUserNotFound: {}, CodeWrongPassword: {},
	CodeTooManyRequests: {}, CodeEmailInUse: {}, CodeWeakPassword: {},
	CodeInvalidUserToken: {}, CodeUserTokenExpired: {}, CodeNullUser: {}, CodeInvalidResetCode: {},
}

// ParseAuthCode returns the code for s, or CodeUnknown.
func ParseAuthCode(s string) AuthCode {
	if _, ok := known[AuthCode(s)]; ok {
		return AuthCode(s)
	}
	return CodeUnknown
}

// AuthError is an identity-provider failure carrying a stable code.
type AuthError struct {
	Code AuthCode
	Err  error
}

// NewAuthError wraps err with code.
func NewAuthError(code AuthCode, err error) *AuthError {
	return &AuthError{Code: code, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// CodeOf extracts the auth code from err, or CodeUnknown.
func CodeOf(err error) AuthCode {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}
