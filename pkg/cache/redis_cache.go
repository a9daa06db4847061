// Package cache stores serialized prediction results in Redis.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/zpam/spam-detect/pkg/config"
)

// RedisCache is a byte cache guarded by a circuit breaker. While the breaker is
// open every lookup is reported as a miss and writes are dropped.
type RedisCache struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewRedisCache connects and pings Redis.
func NewRedisCache(cfg config.CacheConfig, log zerolog.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	opt.DB = cfg.DatabaseNum

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Redis connection failed: %w", err)
	}

	c := &RedisCache{
		client:  client,
		prefix:  cfg.KeyPrefix,
		ttl:     config.Duration(cfg.TTL, 24*time.Hour),
		timeout: timeout,
		log:     log,
	}

	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "prediction-cache",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return c, nil
}

// Key derives the Redis key for a text under a given model fingerprint.
func Key(prefix, fingerprint, text string) string {
	sum := sha1.Sum([]byte(fingerprint + "\x00" + text))
	return prefix + ":" + hex.EncodeToString(sum[:])
}

// Get returns (nil, false, nil) on a miss or when the breaker is open.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	v, err := c.cb.Execute(func() (interface{}, error) {
		data, err := c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return data, err
	})
	if isBreakerRejection(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	data, _ := v.([]byte)
	if data == nil {
		return nil, false, nil
	}
	return data, true, nil
}

// Set stores value with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, key, value, c.ttl).Err()
	})
	if isBreakerRejection(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// State reports the breaker state for diagnostics.
func (c *RedisCache) State() string {
	return c.cb.State().String()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
