// Package redis implements the session store on Redis, for deployments
// where sessions must survive restarts and be shared across instances.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := redisstore.New(client)
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	stratahttp "github.com/strata-go/framework/http"
)

var _ stratahttp.SessionStore = (*Store)(nil)

// Commands is the slice of the go-redis client the store uses. *redis.Client
// satisfies it directly.
type Commands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Option configures the Store.
type Option func(*Store)

// WithPrefix sets the key prefix, "strata:session:" by default.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// Store persists sessions as JSON strings with Redis-managed expiry.
type Store struct {
	client Commands
	prefix string
}

// New creates a Redis-backed store. The caller owns the client lifecycle.
func New(client Commands, opts ...Option) *Store {
	s := &Store{client: client, prefix: "strata:session:"}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Load returns the data saved for id, or ErrSessionNotFound.
func (s *Store) Load(ctx context.Context, id string) (map[string]any, error) {
	raw, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err == redis.Nil {
		return nil, stratahttp.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// Save persists data under id with ttl enforced by Redis.
func (s *Store) Save(ctx context.Context, id string, data map[string]any, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+id, raw, ttl).Err()
}

// Delete removes the session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.prefix+id).Err()
}
