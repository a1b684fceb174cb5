package auth

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 10

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	// Hash returns a salted bcrypt hash. Two calls with the same password
	// return different strings.
	Hash(ctx context.Context, password string) (string, error)

	// Verify reports whether password matches hash. Malformed hashes
	// simply do not match.
	Verify(ctx context.Context, password, hash string) bool
}

// bcryptHasher implements PasswordHasher. Every hash and compare takes a
// slot from a pool sized to GOMAXPROCS, so a burst of logins queues instead
// of starving the rest of the server of CPU.
type bcryptHasher struct {
	cost  int
	slots chan struct{}
}

// NewPasswordHasher creates a bcrypt hasher with the given cost. Costs
// outside bcrypt's range fall back to DefaultBcryptCost.
func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &bcryptHasher{
		cost:  cost,
		slots: make(chan struct{}, runtime.GOMAXPROCS(0)),
	}
}

// Hash implements PasswordHasher.
func (h *bcryptHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.release()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("generating bcrypt hash: %w", err)
	}
	return string(hash), nil
}

// Verify implements PasswordHasher.
func (h *bcryptHasher) Verify(ctx context.Context, password, hash string) bool {
	if hash == "" {
		return false
	}
	if err := h.acquire(ctx); err != nil {
		return false
	}
	defer h.release()

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (h *bcryptHasher) acquire(ctx context.Context) error {
	select {
	case h.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *bcryptHasher) release() {
	<-h.slots
}
