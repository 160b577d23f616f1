package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/metflix/server/internal/logger"
	"github.com/metflix/server/internal/mail"
	"github.com/metflix/server/internal/model"
	"github.com/metflix/server/internal/repo"
	"github.com/rs/zerolog/log"
)

// OTPs for signup and for password reset live under separate keys so one
// flow never consumes or blocks the other's code
type otpPurpose string

const (
	otpSignup otpPurpose = "signup"
	otpReset  otpPurpose = "reset"
)

func otpKey(p otpPurpose, email string) string {
	return string(p) + ":" + email
}

// Session is the pair of tokens delivered as cookies after authentication
type Session struct {
	AccessToken  string
	RefreshToken string
}

// SignupInput is the body of a signup request
type SignupInput struct {
	Email    string
	Password string
	Username string
}

// AuthService orchestrates signup, login and password reset
type AuthService struct {
	otpProvider OtpProvider
	jwtService  *JWTService
	userRepo    repo.UserRepo
	hasher      PasswordHasher
	mailer      mail.Mailer
	identity    IdentityVerifier
}

// NewAuthService creates a new auth service
func NewAuthService(
	otpProvider OtpProvider,
	jwtService *JWTService,
	userRepo repo.UserRepo,
	hasher PasswordHasher,
	mailer mail.Mailer,
	identity IdentityVerifier,
) *AuthService {
	return &AuthService{
		otpProvider: otpProvider,
		jwtService:  jwtService,
		userRepo:    userRepo,
		hasher:      hasher,
		mailer:      mailer,
		identity:    identity,
	}
}

// Signup hashes the password, rejects known emails and emails with a live
// signup code, emails an OTP and returns a pending-signup token carrying the
// unverified account data
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (string, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if in.Email == "" || in.Password == "" || in.Username == "" {
		return "", invalid("Email is required, Password is required, and Username is required")
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", err
	}

	if err := s.ensureNoUser(ctx, in.Email); err != nil {
		return "", err
	}
	pending, err := s.otpProvider.Exists(ctx, otpKey(otpSignup, in.Email))
	if err != nil {
		return "", fmt.Errorf("check pending signup: %w", err)
	}
	if pending {
		return "", ErrSignupPending
	}

	if err := s.issueOtp(ctx, otpSignup, in.Username, in.Email); err != nil {
		return "", err
	}

	token, err := s.jwtService.SignPendingSignup(PendingSignup{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: passwordHash,
		Role:         model.RoleUser,
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ResendOtp replaces the pending code for email. A live code is only logged;
// there is no cooldown.
func (s *AuthService) ResendOtp(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("Email is required")
	}

	key := otpKey(otpSignup, email)
	if exists, err := s.otpProvider.Exists(ctx, key); err == nil && exists {
		remaining, _ := s.otpProvider.RemainingTime(ctx, key)
		log.Ctx(ctx).Info().
			Str("email", logger.MaskEmail(email)).
			Dur("remaining", remaining).
			Msg("existing OTP replaced by resend")
	}

	return s.issueOtp(ctx, otpSignup, "User", email)
}

// CreateUser completes signup: the pending token must be valid, the OTP must
// match, and the email must still be free
func (s *AuthService) CreateUser(ctx context.Context, pendingToken, otp string) (model.User, Session, error) {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return model.User{}, Session{}, invalid("OTP is required")
	}

	claims, err := s.jwtService.VerifyToken(pendingToken, PurposePendingSignup)
	if err != nil {
		return model.User{}, Session{}, err
	}
	if claims.Email == "" {
		return model.User{}, Session{}, &InvalidTokenError{Reason: ReasonMalformed, Err: errors.New("missing email claim")}
	}

	ok, err := s.otpProvider.Verify(ctx, otpKey(otpSignup, claims.Email), otp)
	if err != nil {
		return model.User{}, Session{}, fmt.Errorf("verify otp: %w", err)
	}
	if !ok {
		return model.User{}, Session{}, ErrIncorrectOTP
	}

	// The account may have been created since signup.
	if err := s.ensureNoUser(ctx, claims.Email); err != nil {
		return model.User{}, Session{}, err
	}

	role := claims.Role
	if !role.Valid() {
		role = model.RoleUser
	}
	user, err := s.userRepo.Create(ctx, model.NewUser{
		Email:        claims.Email,
		Username:     claims.Username,
		PasswordHash: claims.PasswordHash,
		Role:         role,
	})
	if err != nil {
		return model.User{}, Session{}, err
	}

	session, err := s.newSession(user)
	if err != nil {
		return model.User{}, Session{}, err
	}
	return user, session, nil
}

// Login checks the password of an existing, unblocked account
func (s *AuthService) Login(ctx context.Context, email, password string) (model.User, Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.User{}, Session{}, invalid("Email is required and Password is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return model.User{}, Session{}, err
	}
	if user.IsBlocked {
		return model.User{}, Session{}, ErrAccountBlocked
	}
	if !user.HasPassword() || !s.hasher.Compare(user.PasswordHash, password) {
		return model.User{}, Session{}, ErrInvalidPassword
	}

	session, err := s.newSession(user)
	if err != nil {
		return model.User{}, Session{}, err
	}
	return user, session, nil
}

// FederatedLogin signs in with an identity asserted by an external provider,
// creating the account on first use
func (s *AuthService) FederatedLogin(ctx context.Context, a IdentityAssertion) (model.User, Session, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.TrimSpace(a.Email)
	if a.Name == "" || a.Email == "" {
		return model.User{}, Session{}, invalid("Name and email are required")
	}

	if err := s.identity.Verify(ctx, a); err != nil {
		return model.User{}, Session{}, err
	}

	user, err := s.userRepo.GetByEmail(ctx, a.Email)
	if errors.Is(err, repo.ErrUserNotFound) {
		user, err = s.userRepo.UpsertFederated(ctx, a.Name, a.Email)
	}
	if err != nil {
		return model.User{}, Session{}, err
	}
	if user.IsBlocked {
		return model.User{}, Session{}, ErrAccountBlocked
	}

	session, err := s.newSession(user)
	if err != nil {
		return model.User{}, Session{}, err
	}
	return user, session, nil
}

// VerifyEmail starts a password reset by emailing an OTP to a known account
func (s *AuthService) VerifyEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.User{}, invalid("Email is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return model.User{}, err
	}
	if err := s.issueOtp(ctx, otpReset, user.Username, email); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// VerifyResetOtp exchanges a correct reset OTP for a reset-scope token
func (s *AuthService) VerifyResetOtp(ctx context.Context, email, otp string) (string, error) {
	email = strings.TrimSpace(email)
	otp = strings.TrimSpace(otp)
	if email == "" || otp == "" {
		return "", invalid("Email is required and OTP is required")
	}

	ok, err := s.otpProvider.Verify(ctx, otpKey(otpReset, email), otp)
	if err != nil {
		return "", fmt.Errorf("verify otp: %w", err)
	}
	if !ok {
		return "", ErrIncorrectOTP
	}
	return s.jwtService.SignResetToken(email)
}

// ForgotResendOtp replaces the pending reset code for email
func (s *AuthService) ForgotResendOtp(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("Email is required")
	}
	name := "User"
	if u, err := s.userRepo.GetByEmail(ctx, email); err == nil && u.Username != "" {
		name = u.Username
	}
	return s.issueOtp(ctx, otpReset, name, email)
}

// ResetPassword sets a new password for the email named by the reset token
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, password string) error {
	if password == "" {
		return invalid("Password is required")
	}
	if resetToken == "" {
		return ErrResetTokenRequired
	}

	claims, err := s.jwtService.VerifyToken(resetToken, PurposeReset)
	if err != nil {
		return err
	}
	if claims.Email == "" {
		return &InvalidTokenError{Reason: ReasonMalformed, Err: errors.New("missing email claim")}
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	if _, err := s.userRepo.ResetPassword(ctx, claims.Email, passwordHash); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return ErrPasswordResetFailed
		}
		return err
	}
	return nil
}

// Refresh issues a new access token for a valid refresh token whose account
// still exists and is not blocked
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.User, string, error) {
	claims, err := s.jwtService.VerifyToken(refreshToken, PurposeRefresh)
	if err != nil {
		return model.User{}, "", err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return model.User{}, "", &InvalidTokenError{Reason: ReasonMalformed, Err: err}
	}
	if err != nil {
		return model.User{}, "", err
	}
	if user.IsBlocked {
		return model.User{}, "", ErrAccountBlocked
	}

	accessToken, err := s.jwtService.SignAccessToken(user)
	if err != nil {
		return model.User{}, "", err
	}
	return user, accessToken, nil
}

func (s *AuthService) ensureNoUser(ctx context.Context, email string) error {
	_, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrUserExists
	case errors.Is(err, repo.ErrUserNotFound):
		return nil
	default:
		return err
	}
}

func (s *AuthService) issueOtp(ctx context.Context, purpose otpPurpose, name, email string) error {
	code, err := s.otpProvider.Create(ctx, otpKey(purpose, email), otpLength, otpExpiry)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("email", logger.MaskEmail(email)).Msg("failed to create OTP")
		return ErrOtpIssue
	}
	if err := s.mailer.SendVerificationCode(ctx, name, email, code); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func (s *AuthService) newSession(u model.User) (Session, error) {
	access, err := s.jwtService.SignAccessToken(u)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.jwtService.SignRefreshToken(u)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: access, RefreshToken: refresh}, nil
}
