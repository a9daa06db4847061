package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zpam/spam-detect/pkg/config"
)

var testCacheConfig = config.CacheConfig{
	Enabled:     true,
	RedisURL:    "redis://localhost:6379",
	KeyPrefix:   "zpam:test:predict",
	DatabaseNum: 1, // Use separate database for testing
	TTL:         "1m",
	TimeoutMs:   500,
}

func TestKey(t *testing.T) {
	a := Key("p", "model-a", "free money")
	b := Key("p", "model-b", "free money")
	c := Key("p", "model-a", "free money ")

	if !strings.HasPrefix(a, "p:") || len(a) != len("p:")+40 {
		t.Errorf("unexpected key shape %q", a)
	}
	if a == b {
		t.Error("key should depend on the model fingerprint")
	}
	if a == c {
		t.Error("key should depend on the exact text")
	}
	if a != Key("p", "model-a", "free money") {
		t.Error("key should be deterministic")
	}
	if Key("p", "ab", "c") == Key("p", "a", "bc") {
		t.Error("fingerprint and text must be separated")
	}
}

func TestNewRedisCacheErrors(t *testing.T) {
	cfg := testCacheConfig
	cfg.RedisURL = "not a url"
	if _, err := NewRedisCache(cfg, zerolog.Nop()); err == nil {
		t.Error("expected error for invalid URL")
	}

	cfg.RedisURL = "redis://127.0.0.1:1"
	if _, err := NewRedisCache(cfg, zerolog.Nop()); err == nil {
		t.Error("expected error for unreachable Redis")
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	if !isRedisAvailable() {
		t.Skip("Redis not available, skipping test")
	}

	c, err := NewRedisCache(testCacheConfig, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create Redis cache: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	key := Key(testCacheConfig.KeyPrefix, "roundtrip", time.Now().String())

	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, key, []byte(`{"prediction":"spam"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(data) != `{"prediction":"spam"}` {
		t.Errorf("Get = %s", data)
	}
	if c.State() != "closed" {
		t.Errorf("breaker state = %s", c.State())
	}

	c.client.Del(ctx, key)
}

func isRedisAvailable() bool {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use test database
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return client.Ping(ctx).Err() == nil
}
