package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const convKeyPrefix = "relay:conv:"

// RedisStore keeps each user's history as a single JSON value with a TTL
// equal to the idle-expiry threshold, so Redis itself handles idle
// cleanup. Writing the whole value per mutation gives the same
// copy-on-write visibility as the in-memory store.
type RedisStore struct {
	client    redis.Cmdable
	idleAfter time.Duration
}

// NewRedisStore creates a Redis-backed conversation store.
func NewRedisStore(client redis.Cmdable, idleAfter time.Duration) *RedisStore {
	return &RedisStore{client: client, idleAfter: idleAfter}
}

func convKey(userID string) string {
	return convKeyPrefix + userID
}

func (s *RedisStore) Get(ctx context.Context, userID string) ([]Turn, error) {
	val, err := s.client.Get(ctx, convKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", convKey(userID), err)
	}

	var turns []Turn
	if err := json.Unmarshal([]byte(val), &turns); err != nil {
		return nil, fmt.Errorf("unmarshaling history for %s: %w", userID, err)
	}
	return turns, nil
}

func (s *RedisStore) Put(ctx context.Context, userID string, turns []Turn) error {
	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshaling history for %s: %w", userID, err)
	}
	if err := s.client.Set(ctx, convKey(userID), data, s.idleAfter).Err(); err != nil {
		return fmt.Errorf("set %s: %w", convKey(userID), err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, convKey(userID)).Err()
}

// Cleanup is a no-op: the per-key TTL set on every Put enforces idle
// expiry server-side.
func (s *RedisStore) Cleanup(context.Context) error {
	return nil
}
