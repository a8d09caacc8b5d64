// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package cache

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

const (
	DefaultTTL       = 10 * time.Minute
	DefaultTimeout   = 250 * time.Millisecond
	DefaultNamespace = "kg:"

	// DefaultRetryBackoff spaces out retries of deletes that failed.
	DefaultRetryBackoff = time.Second

	stripeCount = 256
)

// Options configures a Cache.
type Options struct {
	// TTL bounds how long an entry may live. Zero means DefaultTTL; a
	// negative value stores entries without expiry.
	TTL time.Duration

	// Timeout bounds every backend call.
	Timeout time.Duration

	// Namespace is prepended to every key. Empty means DefaultNamespace.
	Namespace string

	// RetryBackoff is the minimum gap between attempts to complete a failed
	// invalidation. Reads covered by it are misses in between.
	RetryBackoff time.Duration

	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// Token records the invalidation state of a key at the moment a reader
// decided to consult the store. Populate refuses to store a value whose
// token is stale.
type Token struct {
	key    string
	stripe uint32
	gen    uint64
	epoch  uint64
}

// Version identifies the invalidation state the token captured. Two tokens
// for one key share a version only if the key was not invalidated between
// them.
func (t Token) Version() string {
	return strconv.FormatUint(t.gen, 10) + "." + strconv.FormatUint(t.epoch, 10)
}

type stripe struct {
	mu  sync.Mutex
	gen uint64
}

// Cache is a fail-open, invalidation-authoritative view over a Backend.
// None of its methods return backend errors.
type Cache struct {
	backend Backend
	ttl     time.Duration
	timeout time.Duration
	ns      string
	logger  *slog.Logger
	metrics *Metrics
	enabled bool
	backoff time.Duration
	now     func() time.Time

	stripes [stripeCount]stripe

	epochMu      sync.RWMutex
	allEpoch     uint64
	prefixEpochs map[string]uint64

	pendingMu       sync.Mutex
	pendingSeq      uint64
	pendingKeys     map[string]uint64
	pendingPrefixes map[string]uint64
	retryAfter      time.Time

	closeOnce sync.Once
}

// New wraps backend. A nil backend disables caching.
func New(backend Backend, opts Options) *Cache {
	enabled := true
	if backend == nil {
		backend = NoopBackend{}
		enabled = false
	}
	if _, ok := backend.(NoopBackend); ok {
		enabled = false
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.TTL < 0 {
		opts.TTL = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	return &Cache{
		backend:         backend,
		ttl:             opts.TTL,
		timeout:         opts.Timeout,
		ns:              opts.Namespace,
		logger:          opts.Logger,
		metrics:         NewMetrics(opts.Registerer),
		enabled:         enabled,
		backoff:         opts.RetryBackoff,
		now:             time.Now,
		prefixEpochs:    make(map[string]uint64),
		pendingKeys:     make(map[string]uint64),
		pendingPrefixes: make(map[string]uint64),
	}
}

// Disabled returns a Cache that never stores anything.
func Disabled() *Cache {
	return New(nil, Options{})
}

// Enabled reports whether a real backend is attached.
func (c *Cache) Enabled() bool { return c.enabled }

// Token must be taken before reading the store for key.
func (c *Cache) Token(key string) Token {
	idx := stripeIndex(key)

	c.epochMu.RLock()
	epoch := c.epochLocked(key)
	st := &c.stripes[idx]
	st.mu.Lock()
	gen := st.gen
	st.mu.Unlock()
	c.epochMu.RUnlock()

	return Token{key: key, stripe: idx, gen: gen, epoch: epoch}
}

// Get decodes the cached value for key into dst. Any failure is a miss.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	if !c.enabled {
		return false
	}
	if c.retryPending(ctx, key) {
		c.metrics.Requests.WithLabelValues("miss").Inc()
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, ok, err := c.backend.Get(ctx, c.ns+key)
	if err != nil {
		c.degraded(ctx, "get", key, err)
		c.metrics.Requests.WithLabelValues("miss").Inc()
		return false
	}
	if !ok {
		c.metrics.Requests.WithLabelValues("miss").Inc()
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.WarnContext(ctx, "dropping undecodable cache entry",
			slog.String("key", key), slog.Any("error", err))
		_ = c.backend.Delete(ctx, c.ns+key)
		c.metrics.Requests.WithLabelValues("miss").Inc()
		return false
	}
	c.metrics.Requests.WithLabelValues("hit").Inc()
	return true
}

// Populate stores value under tok's key unless the key was invalidated
// after tok was taken. It reports whether the value was stored.
func (c *Cache) Populate(ctx context.Context, tok Token, value any) bool {
	if !c.enabled {
		return false
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.WarnContext(ctx, "cache value not encodable",
			slog.String("key", tok.key), slog.Any("error", err))
		return false
	}

	c.epochMu.RLock()
	defer c.epochMu.RUnlock()
	st := &c.stripes[tok.stripe]
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.gen != tok.gen || c.epochLocked(tok.key) != tok.epoch || c.isPending(tok.key) {
		c.metrics.Skipped.Inc()
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.backend.Set(ctx, c.ns+tok.key, raw, c.ttl); err != nil {
		c.degraded(ctx, "set", tok.key, err)
		return false
	}
	return true
}

// Invalidate removes keys. Entries that cannot be deleted are remembered
// and served as misses until a later delete succeeds. Token versions move
// even when caching is disabled.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		st := &c.stripes[stripeIndex(key)]
		st.mu.Lock()
		st.gen++
		st.mu.Unlock()
	}
	if !c.enabled || len(keys) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = c.ns + key
	}
	if err := c.backend.Delete(ctx, full...); err != nil {
		c.degraded(ctx, "delete", strings.Join(keys, ","), err)
		c.pendingMu.Lock()
		for _, key := range keys {
			c.pendingSeq++
			c.pendingKeys[key] = c.pendingSeq
		}
		c.retryAfter = c.now().Add(c.backoff)
		c.pendingMu.Unlock()
	}
}

// InvalidatePrefix removes every key starting with prefix.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	c.epochMu.Lock()
	c.prefixEpochs[prefix]++
	c.epochMu.Unlock()

	if c.enabled {
		c.deletePrefix(ctx, prefix)
	}
}

// InvalidateAll drops everything under the namespace.
func (c *Cache) InvalidateAll(ctx context.Context) {
	c.epochMu.Lock()
	c.allEpoch++
	c.epochMu.Unlock()

	if c.enabled {
		c.deletePrefix(ctx, "")
	}
}

// Pending returns how many keys and prefixes await a successful delete.
func (c *Cache) Pending() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pendingKeys) + len(c.pendingPrefixes)
}

// Ping checks the backend when it supports it.
func (c *Cache) Ping(ctx context.Context) error {
	p, ok := c.backend.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return p.Ping(ctx)
}

func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.backend.Close() })
	return err
}

func (c *Cache) deletePrefix(ctx context.Context, prefix string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	if err := c.backend.DeletePrefix(ctx, c.ns+prefix); err != nil {
		c.degraded(ctx, "delete_prefix", prefix+"*", err)
		c.pendingMu.Lock()
		c.pendingSeq++
		c.pendingPrefixes[prefix] = c.pendingSeq
		c.retryAfter = c.now().Add(c.backoff)
		c.pendingMu.Unlock()
	}
}

// epochLocked sums the epochs covering key. Caller holds epochMu.
func (c *Cache) epochLocked(key string) uint64 {
	sum := c.allEpoch
	for prefix, e := range c.prefixEpochs {
		if strings.HasPrefix(key, prefix) {
			sum += e
		}
	}
	return sum
}

func (c *Cache) isPending(key string) bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if _, ok := c.pendingKeys[key]; ok {
		return true
	}
	for prefix := range c.pendingPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// retryPending re-attempts outstanding deletes covering key, at most once
// per backoff interval. It reports true when key must be treated as a miss.
func (c *Cache) retryPending(ctx context.Context, key string) bool {
	c.pendingMu.Lock()
	keySeq, keyPending := c.pendingKeys[key]
	prefixes := make(map[string]uint64)
	for prefix, seq := range c.pendingPrefixes {
		if strings.HasPrefix(key, prefix) {
			prefixes[prefix] = seq
		}
	}
	if !keyPending && len(prefixes) == 0 {
		c.pendingMu.Unlock()
		return false
	}
	now := c.now()
	if now.Before(c.retryAfter) {
		c.pendingMu.Unlock()
		return true
	}
	c.retryAfter = now.Add(c.backoff)
	c.pendingMu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	for prefix, seq := range prefixes {
		if err := c.backend.DeletePrefix(ctx, c.ns+prefix); err != nil {
			c.degraded(ctx, "delete_prefix", prefix+"*", err)
			continue
		}
		c.pendingMu.Lock()
		if c.pendingPrefixes[prefix] == seq {
			delete(c.pendingPrefixes, prefix)
		}
		c.pendingMu.Unlock()
	}
	if keyPending {
		if err := c.backend.Delete(ctx, c.ns+key); err != nil {
			c.degraded(ctx, "delete", key, err)
		} else {
			c.pendingMu.Lock()
			if c.pendingKeys[key] == keySeq {
				delete(c.pendingKeys, key)
			}
			c.pendingMu.Unlock()
		}
	}
	return true
}

func (c *Cache) degraded(ctx context.Context, op, key string, err error) {
	c.metrics.Degraded.WithLabelValues(op).Inc()
	err = kgerr.Wrap(err, kgerr.CodeCacheBackendDegraded, "cache "+op, kgerr.FieldCacheKey(key))
	c.logger.WarnContext(ctx, "cache degraded",
		slog.String("code", string(kgerr.CodeOf(err))),
		slog.String("op", op),
		slog.String("key", key),
		slog.Any("error", err),
	)
}

func stripeIndex(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % stripeCount
}
