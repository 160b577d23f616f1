package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/metflix/server/internal/model"
)

const (
	accessTokenExpiry  = 2 * time.Hour
	refreshTokenExpiry = 7 * 24 * time.Hour
	pendingTokenExpiry = 10 * time.Minute
	resetTokenExpiry   = 15 * time.Minute
)

// Purpose scopes what a token may be used for
type Purpose string

const (
	PurposePendingSignup Purpose = "signup"
	PurposeAccess        Purpose = "access"
	PurposeRefresh       Purpose = "refresh"
	PurposeReset         Purpose = "reset"
)

// JWTClaims is the payload of every token the service issues. Which fields
// are set depends on the purpose.
type JWTClaims struct {
	UserID       string     `json:"id,omitempty"`
	Email        string     `json:"email"`
	Role         model.Role `json:"role,omitempty"`
	Username     string     `json:"username,omitempty"`
	PasswordHash string     `json:"password,omitempty"`
	Purpose      Purpose    `json:"typ"`
	jwt.RegisteredClaims
}

// PendingSignup is the unverified signup data carried by a pending-signup token
type PendingSignup struct {
	Email        string
	Username     string
	PasswordHash string
	Role         model.Role
}

// InvalidReason tells why a token was rejected. Callers treat every reason as
// unauthorized; the distinction is for logs.
type InvalidReason string

const (
	ReasonExpired      InvalidReason = "expired"
	ReasonMalformed    InvalidReason = "malformed"
	ReasonWrongPurpose InvalidReason = "wrong_purpose"
)

// ErrInvalidToken matches every *InvalidTokenError via errors.Is
var ErrInvalidToken = errors.New("invalid token")

// InvalidTokenError is returned by VerifyToken for any rejected token
type InvalidTokenError struct {
	Reason InvalidReason
	Err    error
}

func (e *InvalidTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid token (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid token (%s)", e.Reason)
}

func (e *InvalidTokenError) Unwrap() error { return e.Err }

func (e *InvalidTokenError) Is(target error) bool { return target == ErrInvalidToken }

// JWTService handles JWT token operations
type JWTService struct {
	secret []byte
	now    func() time.Time
}

// NewJWTService creates a new JWT service signing with HS256
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// SignPendingSignup issues the token returned by signup, valid until the OTP
// flow completes
func (s *JWTService) SignPendingSignup(p PendingSignup) (string, error) {
	return s.sign(&JWTClaims{
		Email:        p.Email,
		Username:     p.Username,
		PasswordHash: p.PasswordHash,
		Role:         p.Role,
		Purpose:      PurposePendingSignup,
	}, pendingTokenExpiry)
}

// SignAccessToken creates a session access token for the user
func (s *JWTService) SignAccessToken(u model.User) (string, error) {
	return s.sign(sessionClaims(u, PurposeAccess), accessTokenExpiry)
}

// SignRefreshToken creates a session refresh token for the user
func (s *JWTService) SignRefreshToken(u model.User) (string, error) {
	return s.sign(sessionClaims(u, PurposeRefresh), refreshTokenExpiry)
}

// SignResetToken creates a token that only authorizes resetting the
// password of email
func (s *JWTService) SignResetToken(email string) (string, error) {
	return s.sign(&JWTClaims{Email: email, Purpose: PurposeReset}, resetTokenExpiry)
}

func sessionClaims(u model.User, purpose Purpose) *JWTClaims {
	return &JWTClaims{
		UserID:  u.ID.String(),
		Email:   u.Email,
		Role:    u.Role,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: u.ID.String(),
		},
	}
}

func (s *JWTService) sign(claims *JWTClaims, ttl time.Duration) (string, error) {
	now := s.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", claims.Purpose, err)
	}
	return tokenString, nil
}

// VerifyToken parses tokenString and checks its signature, expiry and
// purpose. Every failure is an *InvalidTokenError.
func (s *JWTService) VerifyToken(tokenString string, purpose Purpose) (*JWTClaims, error) {
	if tokenString == "" {
		return nil, &InvalidTokenError{Reason: ReasonMalformed, Err: errors.New("empty token")}
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &InvalidTokenError{Reason: ReasonExpired, Err: err}
		}
		return nil, &InvalidTokenError{Reason: ReasonMalformed, Err: err}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &InvalidTokenError{Reason: ReasonMalformed}
	}
	if claims.Purpose != purpose {
		return nil, &InvalidTokenError{
			Reason: ReasonWrongPurpose,
			Err:    fmt.Errorf("got %q, want %q", claims.Purpose, purpose),
		}
	}
	return claims, nil
}
