package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smart-asd/portal/internal/apperror"
)

// Passcode policy defaults.
const (
	DefaultOTPTTL         = 10 * time.Minute
	DefaultOTPMaxAttempts = 5
	otpDigits             = 6
)

// maxSwapRetries bounds how often Verify re-reads after losing a race.
const maxSwapRetries = 8

// otpKeyInfo separates the passcode digest key from the session key.
const otpKeyInfo = "smart-asd portal otp v1"

// otpModulus is 10^otpDigits.
var otpModulus = big.NewInt(1_000_000)

// OTPManager issues and checks one-time passcodes.
type OTPManager interface {
	// Generate issues a fresh code for (email, purpose), replacing any
	// earlier one, and returns the raw code for delivery. Only a keyed
	// digest of the code is stored.
	Generate(ctx context.Context, email string, purpose Purpose) (string, error)

	// Verify checks code against the active challenge. It returns nil on
	// success and an OTP AppError (not found, expired, exhausted,
	// mismatch) otherwise. Each call is a single atomic update of the
	// challenge.
	Verify(ctx context.Context, email, code string, purpose Purpose) error
}

// OTPOptions holds the passcode policy.
type OTPOptions struct {
	TTL         time.Duration
	MaxAttempts int
}

type otpManager struct {
	store       ChallengeStore
	key         []byte
	ttl         time.Duration
	maxAttempts int
	metrics     MetricsRecorder
	now         func() time.Time
}

// NewOTPManager creates an OTPManager over store. The digest key is
// derived from secret; rotating the secret voids every outstanding code.
func NewOTPManager(store ChallengeStore, secret string, opts OTPOptions, metrics MetricsRecorder) (OTPManager, error) {
	if secret == "" {
		return nil, errors.New("otp secret is empty")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultOTPTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOTPMaxAttempts
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}

	m := &otpManager{
		store:       store,
		key:         make([]byte, sha256.Size),
		ttl:         opts.TTL,
		maxAttempts: opts.MaxAttempts,
		metrics:     metrics,
		now:         time.Now,
	}
	if err := deriveKey(secret, otpKeyInfo, m.key); err != nil {
		return nil, fmt.Errorf("deriving otp key: %w", err)
	}
	return m, nil
}

// Generate implements OTPManager.
func (m *otpManager) Generate(ctx context.Context, email string, purpose Purpose) (string, error) {
	if !purpose.Valid() {
		return "", apperror.NewInternal(fmt.Errorf("unknown otp purpose %q", purpose))
	}
	email = normalizeEmail(email)

	code, err := randomCode()
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("generating otp: %w", err))
	}

	c := &Challenge{
		ID:                uuid.NewString(),
		Email:             email,
		Purpose:           purpose,
		CodeHash:          m.digest(email, purpose, code),
		ExpiresAt:         m.now().Add(m.ttl).UTC(),
		AttemptsRemaining: m.maxAttempts,
	}
	if err := m.store.Put(ctx, c); err != nil {
		return "", apperror.NewInternal(fmt.Errorf("storing otp challenge: %w", err))
	}

	m.metrics.OTPGenerated(string(purpose))
	slog.Info("otp generated",
		slog.String("email", email),
		slog.String("purpose", string(purpose)),
		slog.Time("expires_at", c.ExpiresAt),
	)
	return code, nil
}

// Verify implements OTPManager.
func (m *otpManager) Verify(ctx context.Context, email, code string, purpose Purpose) error {
	email = normalizeEmail(email)
	err := m.verify(ctx, email, code, purpose)
	m.metrics.OTPVerified(string(purpose), otpOutcome(err))
	return err
}

func (m *otpManager) verify(ctx context.Context, email, code string, purpose Purpose) error {
	for range maxSwapRetries {
		cur, err := m.store.Get(ctx, email, purpose)
		if err != nil {
			return apperror.NewInternal(fmt.Errorf("loading otp challenge: %w", err))
		}
		if cur == nil || cur.Consumed {
			return apperror.NewOTPNotFound()
		}
		if m.now().After(cur.ExpiresAt) {
			return apperror.NewOTPExpired()
		}
		if cur.AttemptsRemaining <= 0 {
			return apperror.NewOTPAttemptsExhausted()
		}

		next := *cur
		match := hmac.Equal([]byte(cur.CodeHash), []byte(m.digest(email, purpose, code)))
		if match {
			next.Consumed = true
		} else {
			next.AttemptsRemaining--
		}

		swapped, err := m.store.CompareAndSwap(ctx, cur, &next)
		if err != nil {
			return apperror.NewInternal(fmt.Errorf("updating otp challenge: %w", err))
		}
		if !swapped {
			// Someone else wrote the challenge first; judge against theirs.
			continue
		}

		if !match {
			slog.Warn("otp mismatch",
				slog.String("email", email),
				slog.String("purpose", string(purpose)),
				slog.Int("attempts_remaining", next.AttemptsRemaining),
			)
			return apperror.NewOTPMismatch()
		}
		return nil
	}

	return apperror.NewInternal(fmt.Errorf("otp challenge for %s still contended after %d retries", email, maxSwapRetries))
}

// digest is the stored form of a code: HMAC-SHA256 bound to the email and
// purpose so a digest copied between keys never matches.
func (m *otpManager) digest(email string, purpose Purpose, code string) string {
	mac := hmac.New(sha256.New, m.key)
	mac.Write([]byte(string(purpose)))
	mac.Write([]byte{0})
	mac.Write([]byte(email))
	mac.Write([]byte{0})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// randomCode returns a uniformly random zero-padded 6 digit code.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpModulus)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// otpOutcome maps a Verify result to a metrics label.
func otpOutcome(err error) string {
	if err == nil {
		return "success"
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return apperror.TypeInternal
}

// normalizeEmail lowercases and trims an address so lookups are
// case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
