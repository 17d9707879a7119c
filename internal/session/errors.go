package session

import (
	"fmt"

	"github.com/and161185/meal-planner/internal/errs"
)

// Error is a provider failure translated into a user-facing message.
type Error struct {
	Op      string // login, logout, forgot-password, set-password, reset-password
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Messages shown to the user.
const (
	MsgBadCredentials  = "The email or password is incorrect."
	MsgInvalidEmail    = "The email address is invalid."
	MsgTooManyAttempts = "Too many attempts. Please try again later."
	MsgLoginFailed     = "Unable to login. Please try again later."
	MsgNotLoggedIn     = "User is not logged in."
	MsgLogoutFailed    = "Unable to logout. Please try again later."
	MsgWeakPassword    = "The password is too weak."
	MsgInvalidReset    = "The password reset code is invalid or has expired."
	MsgForgotFailed    = "Unable to send a password reset. Please try again later."
	MsgSetFailed       = "Unable to change the password. Please try again later."
	MsgResetFailed     = "Unable to reset the password. Please try again later."
)

func loginMessage(email string, err error) string {
	switch errs.CodeOf(err) {
	case errs.CodeWrongPassword, errs.CodeUserNotFound:
		return MsgBadCredentials
	case errs.CodeUserDisabled:
		return fmt.Sprintf("The account for %s has been disabled.", email)
	case errs.CodeInvalidEmail:
		return MsgInvalidEmail
	case errs.CodeTooManyRequests:
		return MsgTooManyAttempts
	default:
		return MsgLoginFailed
	}
}

func logoutMessage(err error) string {
	switch errs.CodeOf(err) {
	case errs.CodeInvalidUserToken, errs.CodeUserTokenExpired, errs.CodeNullUser:
		return MsgNotLoggedIn
	default:
		return MsgLogoutFailed
	}
}

func passwordMessage(fallback string, err error) string {
	switch errs.CodeOf(err) {
	case errs.CodeInvalidEmail:
		return MsgInvalidEmail
	case errs.CodeWeakPassword:
		return MsgWeakPassword
	case errs.CodeInvalidResetCode:
		return MsgInvalidReset
	case errs.CodeInvalidUserToken, errs.CodeUserTokenExpired, errs.CodeNullUser:
		return MsgNotLoggedIn
	case errs.CodeTooManyRequests:
		return MsgTooManyAttempts
	default:
		return fallback
	}
}
