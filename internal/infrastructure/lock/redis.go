// Package lock makes a payment token single-use across concurrent checkouts
// and serializes operations on one order.
package lock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/k10r/paymill-shopware/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"

	tokenPrefix = "checkout:token:"
	orderPrefix = "checkout:order:"
)

var (
	ErrAttemptInProgress = errors.New("attempt already in progress")
	ErrAttemptCompleted  = errors.New("attempt already completed")
)

// releaseScript drops the marker only while it is still IN_PROGRESS so a
// late release never clears a COMPLETED token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard keeps one marker per key. Keys are digests of the guarded
// value under a prefix, so token and order guards never collide.
type RedisGuard struct {
	client        redis.UniversalClient
	prefix        string
	inProgressTTL time.Duration
	completedTTL  time.Duration
}

// NewRedisGuard guards payment tokens.
func NewRedisGuard(client redis.UniversalClient, cfg config.RedisConfig) *RedisGuard {
	return newRedisGuard(client, tokenPrefix, cfg)
}

// NewOrderGuard guards order ids. Callers Release it when the operation ends.
func NewOrderGuard(client redis.UniversalClient, cfg config.RedisConfig) *RedisGuard {
	return newRedisGuard(client, orderPrefix, cfg)
}

func newRedisGuard(client redis.UniversalClient, prefix string, cfg config.RedisConfig) *RedisGuard {
	return &RedisGuard{
		client:        client,
		prefix:        prefix,
		inProgressTTL: cfg.InProgressTTL,
		completedTTL:  cfg.CompletedTTL,
	}
}

// NewRedisClient connects and pings so a bad address fails at startup.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// Acquire marks the value IN_PROGRESS. It fails with ErrAttemptInProgress or
// ErrAttemptCompleted when another caller holds or already used it.
func (g *RedisGuard) Acquire(ctx context.Context, value string) error {
	key := g.key(value)

	set, err := g.client.SetNX(ctx, key, StatusInProgress, g.inProgressTTL).Result()
	if err != nil {
		return fmt.Errorf("redis SETNX error: %w", err)
	}
	if set {
		return nil
	}

	status, err := g.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; treat as still contended.
		return ErrAttemptInProgress
	}
	if err != nil {
		return fmt.Errorf("redis GET error: %w", err)
	}
	if status == StatusCompleted {
		return ErrAttemptCompleted
	}
	return ErrAttemptInProgress
}

func (g *RedisGuard) Complete(ctx context.Context, value string) error {
	return g.client.Set(ctx, g.key(value), StatusCompleted, g.completedTTL).Err()
}

func (g *RedisGuard) Release(ctx context.Context, value string) error {
	if err := releaseScript.Run(ctx, g.client, []string{g.key(value)}, StatusInProgress).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis release error: %w", err)
	}
	return nil
}

// Status reports the marker for a value, or "" when there is none.
func (g *RedisGuard) Status(ctx context.Context, value string) (string, error) {
	status, err := g.client.Get(ctx, g.key(value)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis GET error: %w", err)
	}
	return status, nil
}

// Tokens are card references; only their digest is stored.
func (g *RedisGuard) key(value string) string {
	sum := sha256.Sum256([]byte(value))
	return g.prefix + hex.EncodeToString(sum[:])
}

// NopGuard is used when redis is not configured.
type NopGuard struct{}

func (NopGuard) Acquire(context.Context, string) error  { return nil }
func (NopGuard) Complete(context.Context, string) error { return nil }
func (NopGuard) Release(context.Context, string) error  { return nil }
