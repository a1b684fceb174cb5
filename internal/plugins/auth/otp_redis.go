package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisChallengeStore keeps challenges as JSON strings in Redis so every
// server instance sees the same attempt counters. CompareAndSwap uses
// WATCH/MULTI: if another client writes the key between our read and our
// EXEC, the transaction aborts and the caller re-reads.
type redisChallengeStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisChallengeStore creates a ChallengeStore backed by Redis.
func NewRedisChallengeStore(client *redis.Client) ChallengeStore {
	return &redisChallengeStore{client: client, now: time.Now}
}

// Get implements ChallengeStore.
func (s *redisChallengeStore) Get(ctx context.Context, email string, purpose Purpose) (*Challenge, error) {
	data, err := s.client.Get(ctx, challengeKey(email, purpose)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading challenge from Redis: %w", err)
	}
	return decodeChallenge(data)
}

// CompareAndSwap implements ChallengeStore.
func (s *redisChallengeStore) CompareAndSwap(ctx context.Context, old, next *Challenge) (bool, error) {
	key := challengeKey(old.Email, old.Purpose)
	swapped := false

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		cur, err := decodeChallenge(data)
		if err != nil {
			return err
		}
		if cur.ID != old.ID || cur.Version != old.Version {
			return nil
		}

		updated := *next
		updated.Version = old.Version + 1
		payload, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshaling challenge: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttlFor(updated.ExpiresAt))
			return nil
		})
		if err != nil {
			return err
		}

		next.Version = updated.Version
		swapped = true
		return nil
	}

	err := s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("swapping challenge in Redis: %w", err)
	}
	return swapped, nil
}

// Put implements ChallengeStore.
func (s *redisChallengeStore) Put(ctx context.Context, c *Challenge) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling challenge: %w", err)
	}

	key := challengeKey(c.Email, c.Purpose)
	if err := s.client.Set(ctx, key, payload, s.ttlFor(c.ExpiresAt)).Err(); err != nil {
		return fmt.Errorf("storing challenge in Redis: %w", err)
	}
	return nil
}

// ttlFor is the Redis key lifetime for a challenge expiring at expiresAt.
func (s *redisChallengeStore) ttlFor(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(s.now()) + challengeRetention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func decodeChallenge(data []byte) (*Challenge, error) {
	var c Challenge
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling challenge: %w", err)
	}
	return &c, nil
}
