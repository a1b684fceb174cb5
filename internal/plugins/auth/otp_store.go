package auth

import (
	"context"
	"sync"
	"time"
)

// challengeRetention keeps expired challenges around long enough to answer
// "expired" instead of "not found" when a late code arrives.
const challengeRetention = time.Hour

// ChallengeStore persists passcode challenges keyed by (email, purpose).
// Implementations must make CompareAndSwap atomic per key: it is the only
// thing standing between two concurrent guesses and a double spend.
type ChallengeStore interface {
	// Get returns the challenge for the key, or nil if there is none.
	Get(ctx context.Context, email string, purpose Purpose) (*Challenge, error)

	// CompareAndSwap replaces the stored challenge with next only if the
	// stored one still has old's ID and Version. It reports whether the
	// swap happened. next.Version is set to old.Version+1 on success.
	CompareAndSwap(ctx context.Context, old, next *Challenge) (bool, error)

	// Put stores c unconditionally, superseding any prior challenge for
	// the same key.
	Put(ctx context.Context, c *Challenge) error
}

// challengeKey is the composite key shared by every store implementation.
func challengeKey(email string, purpose Purpose) string {
	return "otp:" + string(purpose) + ":" + email
}

// memoryChallengeStore is a ChallengeStore for single-instance deployments
// and tests. One mutex covers the map; every operation is O(1) apart from
// the purge that piggybacks on Put.
type memoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]Challenge
	now        func() time.Time
}

// NewMemoryChallengeStore creates an in-process challenge store.
func NewMemoryChallengeStore() ChallengeStore {
	return &memoryChallengeStore{
		challenges: make(map[string]Challenge),
		now:        time.Now,
	}
}

// Get implements ChallengeStore.
func (s *memoryChallengeStore) Get(_ context.Context, email string, purpose Purpose) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[challengeKey(email, purpose)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// CompareAndSwap implements ChallengeStore.
func (s *memoryChallengeStore) CompareAndSwap(_ context.Context, old, next *Challenge) (bool, error) {
	key := challengeKey(old.Email, old.Purpose)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.challenges[key]
	if !ok || cur.ID != old.ID || cur.Version != old.Version {
		return false, nil
	}

	next.Version = old.Version + 1
	s.challenges[key] = *next
	return true, nil
}

// Put implements ChallengeStore.
func (s *memoryChallengeStore) Put(_ context.Context, c *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked()
	s.challenges[challengeKey(c.Email, c.Purpose)] = *c
	return nil
}

// purgeLocked drops challenges past their retention window.
func (s *memoryChallengeStore) purgeLocked() {
	cutoff := s.now().Add(-challengeRetention)
	for key, c := range s.challenges {
		if c.ExpiresAt.Before(cutoff) {
			delete(s.challenges, key)
		}
	}
}
