package auth

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "correct horse battery")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("expected bcrypt hash, got %q", hash)
	}
	if !h.Verify(ctx, "correct horse battery", hash) {
		t.Error("expected password to verify against its own hash")
	}
	if h.Verify(ctx, "correct horse batterY", hash) {
		t.Error("expected a different password not to verify")
	}
}

func TestPasswordHasher_Salted(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	ctx := context.Background()

	a, err := h.Hash(ctx, "same-password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := h.Hash(ctx, "same-password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Error("expected two hashes of the same password to differ")
	}
}

func TestPasswordHasher_MalformedHashNeverMatches(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	ctx := context.Background()

	for _, hash := range []string{"", "plaintext", "$2a$04$short"} {
		if h.Verify(ctx, "plaintext", hash) {
			t.Errorf("expected malformed hash %q not to match", hash)
		}
	}
}

func TestPasswordHasher_CancelledContext(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost).(*bcryptHasher)

	// Fill every slot so the next caller has to wait.
	for range cap(h.slots) {
		h.slots <- struct{}{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.Hash(ctx, "password"); err == nil {
		t.Error("expected error when the context is cancelled while waiting")
	}
}

func TestNewPasswordHasher_InvalidCostFallsBack(t *testing.T) {
	h := NewPasswordHasher(99).(*bcryptHasher)
	if h.cost != DefaultBcryptCost {
		t.Errorf("expected cost %d, got %d", DefaultBcryptCost, h.cost)
	}
}
