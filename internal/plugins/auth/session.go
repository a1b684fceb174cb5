package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// DefaultSessionTTL is the session lifetime when none is configured.
const DefaultSessionTTL = 7 * 24 * time.Hour

// tokenVersion prefixes every token. A future format gets a new prefix and
// old tokens simply stop decoding.
const tokenVersion = "v1."

// sessionKeyInfo domain-separates the session key from other keys derived
// from the same application secret.
const sessionKeyInfo = "smart-asd portal session v1"

// tokenEncoding is strict so a token has exactly one valid spelling.
var tokenEncoding = base64.RawURLEncoding.Strict()

// SessionCodec seals claims into an opaque token and opens them again.
type SessionCodec interface {
	// Encode seals claims. IssuedAt and ExpiresAt are filled in from the
	// codec's clock and TTL when zero.
	Encode(claims SessionClaims) (string, error)

	// Decode returns the claims of a valid, unexpired token and nil for
	// anything else. It never consults a store.
	Decode(token string) *SessionClaims

	// TTL is the lifetime given to newly encoded sessions.
	TTL() time.Duration
}

// aeadCodec implements SessionCodec with XChaCha20-Poly1305. The claims are
// unreadable without the key and any modified byte fails authentication.
type aeadCodec struct {
	key [chacha20poly1305.KeySize]byte
	ttl time.Duration
	now func() time.Time
}

// wireClaims is the sealed payload. Timestamps travel as unix seconds.
type wireClaims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	FullName  string `json:"name"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// NewSessionCodec derives the sealing key from secret with HKDF-SHA256 and
// returns a codec minting tokens that live for ttl.
func NewSessionCodec(secret string, ttl time.Duration) (SessionCodec, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	c := &aeadCodec{ttl: ttl, now: time.Now}
	if err := deriveKey(secret, sessionKeyInfo, c.key[:]); err != nil {
		return nil, fmt.Errorf("deriving session key: %w", err)
	}
	return c, nil
}

// TTL implements SessionCodec.
func (c *aeadCodec) TTL() time.Duration {
	return c.ttl
}

// Encode implements SessionCodec.
func (c *aeadCodec) Encode(claims SessionClaims) (string, error) {
	if claims.UserID == "" || claims.Role == "" {
		return "", errors.New("session claims need a user ID and a role")
	}

	now := c.now()
	if claims.IssuedAt.IsZero() {
		claims.IssuedAt = now
	}
	if claims.ExpiresAt.IsZero() {
		claims.ExpiresAt = claims.IssuedAt.Add(c.ttl)
	}

	payload, err := json.Marshal(wireClaims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      claims.Role,
		FullName:  claims.FullName,
		IssuedAt:  claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling claims: %w", err)
	}

	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return "", fmt.Errorf("creating aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(payload)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	// The version prefix is bound as associated data.
	sealed := aead.Seal(nonce, nonce, payload, []byte(tokenVersion))
	return tokenVersion + tokenEncoding.EncodeToString(sealed), nil
}

// Decode implements SessionCodec.
func (c *aeadCodec) Decode(token string) *SessionClaims {
	body, ok := strings.CutPrefix(token, tokenVersion)
	if !ok || body == "" || strings.ContainsAny(body, "\r\n") {
		return nil
	}

	sealed, err := tokenEncoding.DecodeString(body)
	if err != nil {
		return nil
	}

	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return nil
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	payload, err := aead.Open(nil, nonce, ciphertext, []byte(tokenVersion))
	if err != nil {
		return nil
	}

	var w wireClaims
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil
	}
	if w.UserID == "" || w.Role == "" || w.ExpiresAt == 0 {
		return nil
	}

	expiresAt := time.Unix(w.ExpiresAt, 0).UTC()
	if !c.now().Before(expiresAt) {
		return nil
	}

	return &SessionClaims{
		UserID:    w.UserID,
		Email:     w.Email,
		Role:      w.Role,
		FullName:  w.FullName,
		IssuedAt:  time.Unix(w.IssuedAt, 0).UTC(),
		ExpiresAt: expiresAt,
	}
}

// deriveKey fills out with HKDF-SHA256 output for secret under info.
func deriveKey(secret, info string, out []byte) error {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	_, err := io.ReadFull(r, out)
	return err
}
