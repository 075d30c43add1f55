package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/geodirectory-backend/pkg/config"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	keyNamespace    = "gd"
	rateLimitPrefix = "rate_limit"
	counterPrefix   = "counter"
	cachePrefix     = "cache"
	lockPrefix      = "lock"

	viewportGenerationCounter = "viewport_generation"
)

// ErrNotInitialized is returned when a Client was built without a backing store.
var ErrNotInitialized = errors.New("redis client not initialized")

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
	redis.Scripter
}

// releaseLease deletes KEYS[1] only while it still holds the caller's token.
var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client wraps the redis connection helpers needed by the directory services.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// ViewportCache is the read-through cache surface used by map queries.
// SetViewport takes the generation GetViewport reported, so rows read before
// an invalidation are never stored where later readers can see them.
type ViewportCache interface {
	GetViewport(ctx context.Context, fingerprint string) (payload string, generation int64, hit bool, err error)
	SetViewport(ctx context.Context, generation int64, fingerprint, payload string, ttl time.Duration) error
	InvalidateViewports(ctx context.Context) error
}


// New bootstraps a Redis client with pooling/timeouts and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Debug(ctx, "redis connection established")
	}
	return &Client{store: raw, raw: raw}, nil
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// IsMiss reports whether err signals an absent key.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Set stores a value with an optional TTL.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c == nil || c.store == nil {
		return ErrNotInitialized
	}
	return c.store.Set(ctx, key, value, ttl).Err()
}

// Get returns a string value stored at key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c == nil || c.store == nil {
		return "", ErrNotInitialized
	}
	return c.store.Get(ctx, key).Result()
}

// SetNX sets a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c == nil || c.store == nil {
		return false, ErrNotInitialized
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

// Incr increments the counter stored at key.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	if c == nil || c.store == nil {
		return 0, ErrNotInitialized
	}
	return c.store.Incr(ctx, key).Result()
}

// IncrWithTTL increments and ensures the key has the supplied TTL on the first increment.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := c.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	if ttl > 0 && count == 1 {
		if _, expErr := c.store.Expire(ctx, key, ttl).Result(); expErr != nil {
			return count, expErr
		}
	}
	return count, nil
}

// FixedWindowAllow applies a simple fixed-window rate limit.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	key := c.RateLimitKey(scope)
	count, err := c.IncrWithTTL(ctx, key, window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

// GetViewport looks up a cached viewport payload under the current
// generation and reports that generation for a follow-up SetViewport.
// Entries written under an older generation are never returned.
func (c *Client) GetViewport(ctx context.Context, fingerprint string) (string, int64, bool, error) {
	gen, err := c.viewportGeneration(ctx)
	if err != nil {
		return "", 0, false, err
	}
	payload, err := c.Get(ctx, c.ViewportKey(gen, fingerprint))
	if IsMiss(err) {
		return "", gen, false, nil
	}
	if err != nil {
		return "", gen, false, err
	}
	return payload, gen, true, nil
}

// SetViewport stores a viewport payload under the generation observed before
// the rows were read. After an invalidation that key is no longer read, so
// the payload simply expires.
func (c *Client) SetViewport(ctx context.Context, generation int64, fingerprint, payload string, ttl time.Duration) error {
	return c.Set(ctx, c.ViewportKey(generation, fingerprint), payload, ttl)
}

// InvalidateViewports bumps the generation counter so every cached viewport
// becomes unreachable; stale entries age out through their TTL.
func (c *Client) InvalidateViewports(ctx context.Context) error {
	_, err := c.Incr(ctx, c.CounterKey(viewportGenerationCounter))
	return err
}

func (c *Client) viewportGeneration(ctx context.Context) (int64, error) {
	raw, err := c.Get(ctx, c.CounterKey(viewportGenerationCounter))
	if IsMiss(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing viewport generation %q: %w", raw, err)
	}
	return gen, nil
}

// AcquireLease claims the named lease for token until ttl elapses. It
// reports false when another holder already has it.
func (c *Client) AcquireLease(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, c.LockKey(name), token, ttl)
}

// ReleaseLease drops the named lease if token still holds it. A lease that
// expired and was claimed by someone else is left in place.
func (c *Client) ReleaseLease(ctx context.Context, name, token string) (bool, error) {
	if c == nil || c.store == nil {
		return false, ErrNotInitialized
	}
	deleted, err := releaseLease.Run(ctx, c.store, []string{c.LockKey(name)}, token).Int()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

// RateLimitKey returns a namespaced key for rate limit counters.
func (c *Client) RateLimitKey(scope string) string {
	return c.buildKey(rateLimitPrefix, scope)
}

// CounterKey returns a namespaced key for counters.
func (c *Client) CounterKey(name string) string {
	return c.buildKey(counterPrefix, name)
}

// ViewportKey returns the cache key for a viewport fingerprint at a generation.
func (c *Client) ViewportKey(generation int64, fingerprint string) string {
	return c.buildKey(cachePrefix, "viewport", strconv.FormatInt(generation, 10), fingerprint)
}

// LockKey returns a namespaced key for distributed job leases.
func (c *Client) LockKey(name string) string {
	return c.buildKey(lockPrefix, name)
}

// Del removes the provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c == nil || c.store == nil {
		return ErrNotInitialized
	}
	return c.store.Del(ctx, keys...).Err()
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.store == nil {
		return ErrNotInitialized
	}
	return c.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func (c *Client) buildKey(parts ...string) string {
	if len(parts) == 0 {
		return keyNamespace
	}
	clean := []string{keyNamespace}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, ":")
}
