package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// inFlightMarker is stored under a key whose request is still being
// processed. It is never returned to callers as a replayable response.
const inFlightMarker = "__in_flight__"

// IdempotencyStore implements usecase.IdempotencyStore on Redis.
type IdempotencyStore struct {
	client *redis.Client
	prefix string
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		prefix: "idem:",
	}
}

// CheckAndSet claims the key if it is free and reports whether a
// completed response is already stored under it. A key claimed by a
// still-running request is treated as free so the caller proceeds;
// the recorder's own reference dedup prevents double posting.
func (s *IdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	fullKey := s.prefix + key

	claim := response
	if claim == nil {
		claim = []byte(inFlightMarker)
	}

	claimed, err := s.client.SetNX(ctx, fullKey, claim, ttl).Result()
	if err != nil {
		return false, nil, err
	}
	if claimed {
		return false, nil, nil
	}

	existing, err := s.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SetNX and Get; let the request run.
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	if string(existing) == inFlightMarker {
		return false, nil, nil
	}

	return true, existing, nil
}

// Update stores the final response under the key, replacing any
// in-flight marker.
func (s *IdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, response, ttl).Err()
}
