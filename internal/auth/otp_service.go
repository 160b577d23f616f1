package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/metflix/server/internal/model"
	"github.com/metflix/server/internal/repo"
)

const (
	otpLength = 6
	otpExpiry = 60 * time.Second
)

// OtpService implements OtpProvider on top of an OtpRepo. Only a salted hash
// of each code is stored.
type OtpService struct {
	otpRepo repo.OtpRepo
	salt    string
	now     func() time.Time
}

// NewOtpService creates a new OTP provider
func NewOtpService(otpRepo repo.OtpRepo, salt string) *OtpService {
	return &OtpService{
		otpRepo: otpRepo,
		salt:    salt,
		now:     time.Now,
	}
}

// Create generates a digits-only code of the given length (4 or 6) and
// stores its hash with expiry now+ttl
func (s *OtpService) Create(ctx context.Context, email string, length int, ttl time.Duration) (string, error) {
	if length != 4 && length != 6 {
		return "", fmt.Errorf("unsupported OTP length %d", length)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}

	code, err := generateOTPCode(length)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	now := s.now()
	rec := model.OtpRecord{
		Email:     email,
		CodeHash:  hashOTPHex(email, code, s.salt),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.otpRepo.Save(ctx, rec, ttl); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return code, nil
}

// Exists reports whether a live code is pending for email
func (s *OtpService) Exists(ctx context.Context, email string) (bool, error) {
	_, err := s.live(ctx, email)
	if errors.Is(err, repo.ErrOtpNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemainingTime returns how long the pending code for email stays valid,
// or zero when there is none
func (s *OtpService) RemainingTime(ctx context.Context, email string) (time.Duration, error) {
	rec, err := s.live(ctx, email)
	if errors.Is(err, repo.ErrOtpNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.ExpiresAt.Sub(s.now()), nil
}

// Verify compares code with the pending one in constant time and consumes
// the record on a match. Of concurrent verifications of the same code only
// one succeeds.
func (s *OtpService) Verify(ctx context.Context, email, code string) (bool, error) {
	rec, err := s.live(ctx, email)
	if errors.Is(err, repo.ErrOtpNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	stored, err := hex.DecodeString(rec.CodeHash)
	if err != nil {
		return false, fmt.Errorf("decode otp hash: %w", err)
	}
	if subtle.ConstantTimeCompare(hashOTPBytes(email, code, s.salt), stored) != 1 {
		return false, nil
	}

	consumed, err := s.otpRepo.Consume(ctx, email, rec.CodeHash)
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return consumed, nil
}

func (s *OtpService) live(ctx context.Context, email string) (model.OtpRecord, error) {
	rec, err := s.otpRepo.Get(ctx, email)
	if err != nil {
		return model.OtpRecord{}, err
	}
	if !s.now().Before(rec.ExpiresAt) {
		return model.OtpRecord{}, repo.ErrOtpNotFound
	}
	return rec, nil
}

func generateOTPCode(length int) (string, error) {
	digits := make([]byte, length)
	ten := big.NewInt(10)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

// hashOTPHex returns SHA-256(email:code:salt) as hex for storage
func hashOTPHex(email, code, salt string) string {
	return hex.EncodeToString(hashOTPBytes(email, code, salt))
}

func hashOTPBytes(email, code, salt string) []byte {
	data := fmt.Sprintf("%s:%s:%s", email, code, salt)
	hash := sha256.Sum256([]byte(data))
	return hash[:]
}
