package auth

import (
	"errors"

	"github.com/metflix/server/internal/repo"
)

var (
	ErrUserExists          = repo.ErrUserExists
	ErrUserNotFound        = repo.ErrUserNotFound
	ErrSignupPending       = errors.New("signup verification already pending")
	ErrAccountBlocked      = errors.New("account is blocked")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrIncorrectOTP        = errors.New("incorrect OTP")
	ErrOtpIssue            = errors.New("failed to create OTP")
	ErrResetTokenRequired  = errors.New("reset token is required")
	ErrPasswordResetFailed = errors.New("failed to reset password")
	ErrIdentityNotVerified = errors.New("identity assertion not verified")
)

// ValidationError reports missing or malformed input. Message is safe to
// return to clients as-is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
