package auth

import (
	"context"
	"time"
)

// OtpProvider issues and checks one-time passcodes keyed by email
type OtpProvider interface {
	// Create stores a fresh code for email, replacing any pending one, and
	// returns the plaintext code for delivery.
	Create(ctx context.Context, email string, length int, ttl time.Duration) (string, error)
	Exists(ctx context.Context, email string) (bool, error)
	RemainingTime(ctx context.Context, email string) (time.Duration, error)
	// Verify reports whether code matches the live code for email. A match
	// consumes the code; a mismatch leaves it in place.
	Verify(ctx context.Context, email, code string) (bool, error)
}
