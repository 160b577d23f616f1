package repo

import "errors"

var (
	// ErrUserNotFound is returned when no user matches the lookup
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when creating a user whose email is taken
	ErrUserExists = errors.New("user already exists")
	// ErrOtpNotFound is returned when no live OTP exists for the email
	ErrOtpNotFound = errors.New("otp not found")
)
