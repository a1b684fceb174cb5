package auth

import (
	"strings"
	"testing"
	"time"
)

func newTestCodec(t *testing.T, secret string, now time.Time) *aeadCodec {
	t.Helper()
	c, err := NewSessionCodec(secret, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	codec := c.(*aeadCodec)
	codec.now = func() time.Time { return now }
	return codec
}

func TestSessionCodec_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, "test-secret", now)

	token, err := codec.Encode(SessionClaims{
		UserID:   "user-1",
		Email:    "parent@example.com",
		Role:     RolePatient,
		FullName: "Asha Roy",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(token, tokenVersion) {
		t.Errorf("expected token to start with %q, got %q", tokenVersion, token)
	}

	claims := codec.Decode(token)
	if claims == nil {
		t.Fatal("expected claims, got nil")
	}
	if claims.UserID != "user-1" || claims.Role != RolePatient || claims.Email != "parent@example.com" || claims.FullName != "Asha Roy" {
		t.Errorf("claims did not round trip: %+v", claims)
	}
	if !claims.IssuedAt.Equal(now) {
		t.Errorf("expected issued at %s, got %s", now, claims.IssuedAt)
	}
	if !claims.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expected expiry %s, got %s", now.Add(time.Hour), claims.ExpiresAt)
	}
}

func TestSessionCodec_TokensAreOpaqueAndUnique(t *testing.T) {
	codec := newTestCodec(t, "test-secret", time.Now())
	claims := SessionClaims{UserID: "user-1", Email: "visible@example.com", Role: RoleAdmin}

	a, err := codec.Encode(claims)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := codec.Encode(claims)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Error("expected fresh nonce per token")
	}
	if strings.Contains(a, "visible") || strings.Contains(a, RoleAdmin) {
		t.Error("expected claims not to be readable in the token")
	}
}

func TestSessionCodec_SingleBitTamperRejected(t *testing.T) {
	codec := newTestCodec(t, "test-secret", time.Now())
	token, err := codec.Encode(SessionClaims{UserID: "user-1", Role: RoleTherapist})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Flip each bit of the sealed bytes and re-encode.
	sealed, err := tokenEncoding.DecodeString(strings.TrimPrefix(token, tokenVersion))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range sealed {
		for bit := range 8 {
			tampered := append([]byte(nil), sealed...)
			tampered[i] ^= 1 << bit
			if codec.Decode(tokenVersion+tokenEncoding.EncodeToString(tampered)) != nil {
				t.Fatalf("tampered token accepted (byte %d, bit %d)", i, bit)
			}
		}
	}

	// Flip one bit of each character of the token text itself.
	for i := range token {
		b := []byte(token)
		b[i] ^= 1
		if codec.Decode(string(b)) != nil {
			t.Fatalf("tampered token text accepted at position %d", i)
		}
	}
}

func TestSessionCodec_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, "test-secret", now)

	token, err := codec.Encode(SessionClaims{UserID: "user-1", Role: RoleDoctor})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	codec.now = func() time.Time { return now.Add(time.Hour - time.Second) }
	if codec.Decode(token) == nil {
		t.Error("expected token to be valid just before expiry")
	}

	codec.now = func() time.Time { return now.Add(time.Hour) }
	if codec.Decode(token) != nil {
		t.Error("expected token to be rejected at expiry")
	}
}

func TestSessionCodec_WrongKey(t *testing.T) {
	a := newTestCodec(t, "secret-a", time.Now())
	b := newTestCodec(t, "secret-b", time.Now())

	token, err := a.Encode(SessionClaims{UserID: "user-1", Role: RoleCounsellor})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Decode(token) != nil {
		t.Error("expected token sealed under another key to be rejected")
	}
}

func TestSessionCodec_Garbage(t *testing.T) {
	codec := newTestCodec(t, "test-secret", time.Now())
	token, err := codec.Encode(SessionClaims{UserID: "user-1", Role: RolePatient})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, bad := range []string{
		"",
		"v1.",
		"v2." + strings.TrimPrefix(token, tokenVersion),
		strings.TrimPrefix(token, tokenVersion),
		token + "\n",
		token + "=",
		"v1.!!!!",
		token[:len(token)-4],
	} {
		if codec.Decode(bad) != nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestSessionCodec_EncodeRequiresIdentity(t *testing.T) {
	codec := newTestCodec(t, "test-secret", time.Now())
	if _, err := codec.Encode(SessionClaims{Role: RolePatient}); err == nil {
		t.Error("expected error without user ID")
	}
	if _, err := codec.Encode(SessionClaims{UserID: "user-1"}); err == nil {
		t.Error("expected error without role")
	}
}

func TestNewSessionCodec_EmptySecret(t *testing.T) {
	if _, err := NewSessionCodec("", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}
