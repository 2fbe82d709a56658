// Package redis implements backend.Adapter using Redis Hashes: one
// hash per group, one hash field per key.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	a := redisbackend.New(client)
//	if err := a.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bikramjeet/queue-service/backend"
)

// Compile-time interface check.
var _ backend.Adapter = (*Adapter)(nil)

func init() {
	backend.Register(backend.KindRedis, openFromParams)
}

// openFromParams builds an Adapter that owns its client. Recognized
// params: addr, password, db, prefix.
func openFromParams(_ context.Context, params backend.Params) (backend.Adapter, error) {
	db := 0
	if v := params["db"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("queueservice/redis: parse db %q: %w", v, err)
		}
		db = n
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     params["addr"],
		Password: params["password"],
		DB:       db,
	})

	var opts []Option
	if prefix := params["prefix"]; prefix != "" {
		opts = append(opts, WithKeyPrefix(prefix))
	}
	a := New(client, opts...)
	a.ownsClient = true
	return a, nil
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithKeyPrefix overrides the hash key prefix (default "queue:").
func WithKeyPrefix(prefix string) Option {
	return func(a *Adapter) { a.keyPrefix = prefix }
}

// Adapter implements backend.Adapter backed by Redis.
type Adapter struct {
	client     goredis.Cmdable
	keyPrefix  string
	logger     *slog.Logger
	ownsClient bool
}

// New creates a Redis-backed adapter. The caller owns the client
// lifecycle unless the adapter was opened through backend.Open.
func New(client goredis.Cmdable, opts ...Option) *Adapter {
	a := &Adapter{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Client returns the underlying Redis client.
func (a *Adapter) Client() goredis.Cmdable { return a.client }

// GetField reads one hash field. A missing field or hash is absent,
// not an error.
func (a *Adapter) GetField(ctx context.Context, group, field string) ([]byte, bool, error) {
	v, err := a.client.HGet(ctx, a.groupKey(group), field).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("queueservice/redis: get field: %w", err)
	}
	return []byte(v), true, nil
}

// SetField writes one hash field, creating the hash if needed.
func (a *Adapter) SetField(ctx context.Context, group, field string, value []byte) error {
	if err := a.client.HSet(ctx, a.groupKey(group), field, value).Err(); err != nil {
		return fmt.Errorf("queueservice/redis: set field: %w", err)
	}
	return nil
}

// DeleteField removes one hash field and reports whether it existed.
func (a *Adapter) DeleteField(ctx context.Context, group, field string) (bool, error) {
	n, err := a.client.HDel(ctx, a.groupKey(group), field).Result()
	if err != nil {
		return false, fmt.Errorf("queueservice/redis: delete field: %w", err)
	}
	return n > 0, nil
}

// ListFields returns the hash's field names in lexical order. HKEYS
// order is unspecified, so the result is sorted here.
func (a *Adapter) ListFields(ctx context.Context, group string) ([]string, error) {
	fields, err := a.client.HKeys(ctx, a.groupKey(group)).Result()
	if err != nil {
		return nil, fmt.Errorf("queueservice/redis: list fields: %w", err)
	}
	sort.Strings(fields)
	return fields, nil
}

// Ping verifies the Redis connection is alive.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

// Close closes the client only when the adapter opened it itself.
func (a *Adapter) Close(_ context.Context) error {
	if !a.ownsClient {
		return nil
	}
	if c, ok := a.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
