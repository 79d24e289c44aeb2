package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiaot623/roadchat/internal/domain"
)

// Store resolves an unsigned session token to its session.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, token string) (*domain.ClientSession, error)
}

// RedisStore keeps sessions as JSON strings in Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisClient parses url and verifies connectivity. The caller owns the
// returned client and must Close it on shutdown.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}

// NewRedisStore wraps an existing client. Keys are prefix + token.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Get returns domain.ErrSessionNotFound when the token has no session.
func (r *RedisStore) Get(ctx context.Context, token string) (*domain.ClientSession, error) {
	raw, err := r.client.Get(ctx, r.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get session: %w", err)
	}
	var s domain.ClientSession
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("redis: decode session: %w", err)
	}
	if s.UserEmail == "" {
		return nil, fmt.Errorf("redis: session without user email")
	}
	s.SessionToken = token
	return &s, nil
}

// Set stores a session under token. A zero ttl keeps it until deleted.
func (r *RedisStore) Set(ctx context.Context, token string, s domain.ClientSession, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: encode session: %w", err)
	}
	return r.client.Set(ctx, r.prefix+token, data, ttl).Err()
}

// Delete removes the session for token.
func (r *RedisStore) Delete(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.prefix+token).Err()
}
