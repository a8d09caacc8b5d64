// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g. "redis://localhost:6379/0").
	URL string

	// Password overrides any password in URL when set.
	Password string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ScanCount is the COUNT hint for SCAN during prefix deletes.
	ScanCount int64
}

// RedisBackend stores cache entries in Redis.
type RedisBackend struct {
	client    *redis.Client
	scanCount int64
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend builds a client without contacting the server, so an
// unreachable Redis degrades the cache instead of failing startup.
func NewRedisBackend(opts RedisOptions) (*RedisBackend, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 2 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = time.Second
	}
	if opts.ScanCount <= 0 {
		opts.ScanCount = 500
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, kgerr.Errorf(kgerr.CodeCacheConfigInvalid, "parsing redis url: %w", err)
	}
	if opts.Password != "" {
		redisOpts.Password = opts.Password
	}
	redisOpts.DialTimeout = opts.DialTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	return &RedisBackend{client: redis.NewClient(redisOpts), scanCount: opts.ScanCount}, nil
}

// Ping checks connectivity.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Unlink(ctx, keys...).Err()
}

// DeletePrefix removes every key starting with prefix using SCAN, so it
// never blocks the server the way KEYS would.
func (r *RedisBackend) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, escapeGlob(prefix)+"*", r.scanCount).Iterator()
	batch := make([]string, 0, r.scanCount)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) >= r.scanCount {
			if err := r.client.Unlink(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return r.Delete(ctx, batch...)
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// escapeGlob quotes the characters SCAN MATCH treats specially.
func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
