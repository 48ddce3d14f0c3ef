package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimScript grants KEYS[1] (the item) to ARGV[1] unless another owner holds
// it, and moves the owner's pointer KEYS[2] off any item it held before.
var claimScript = redis.NewScript(`
local holder = redis.call("GET", KEYS[1])
if holder and holder ~= ARGV[1] then
	return 0
end
local prev = redis.call("GET", KEYS[2])
if prev and prev ~= KEYS[1] and redis.call("GET", prev) == ARGV[1] then
	redis.call("DEL", prev)
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SET", KEYS[2], KEYS[1], "PX", ARGV[2])
return 1
`)

// releaseScript deletes the claim only if it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
	if redis.call("GET", KEYS[2]) == KEYS[1] then
		redis.call("DEL", KEYS[2])
	end
	return 1
end
return 0
`)

// RedisStore keeps claims in Redis so several service instances share them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets how long a claim lasts.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithPrefix sets the key prefix. Default is "review".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed claim store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, ttl: DefaultTTL, prefix: "review"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Claim implements review.Claims.
func (s *RedisStore) Claim(ctx context.Context, itemID, owner string) (bool, error) {
	if itemID == "" || owner == "" {
		return false, ErrInvalidClaim
	}
	keys := []string{s.key(itemID), s.ownerKey(owner)}
	granted, err := claimScript.Run(ctx, s.client, keys, owner, s.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis claim failed: %w", err)
	}
	return granted == 1, nil
}

// Release implements review.Claims.
func (s *RedisStore) Release(ctx context.Context, itemID, owner string) error {
	keys := []string{s.key(itemID), s.ownerKey(owner)}
	if err := releaseScript.Run(ctx, s.client, keys, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis release failed: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(itemID string) string {
	return s.prefix + ":claim:" + itemID
}

func (s *RedisStore) ownerKey(owner string) string {
	return s.prefix + ":owner:" + owner
}
