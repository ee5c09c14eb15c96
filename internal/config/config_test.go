package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func setRequired(t *testing.T) {
    t.Setenv("APP_ENV", "test")
    t.Setenv("APP_PORT", "8080")
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")
    t.Setenv("REFRESH_TOKEN_TTL_DAYS", "7")
    t.Setenv("BCRYPT_COST", "10")
}

func TestLoadMemoryStoreSkipsDatabase(t *testing.T) {
    setRequired(t)
    t.Setenv("APP_STORE", "Memory")
    t.Setenv("DB_MIGRATE", "off")

    cfg := Load()
    assert.Equal(t, StoreMemory, cfg.Store)
    assert.False(t, cfg.MigrateOnStart)
    assert.Empty(t, cfg.DBHost)
    assert.Equal(t, 15, cfg.AccessTTLMin)
    assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMySQLStore(t *testing.T) {
    setRequired(t)
    t.Setenv("DB_USER", "app")
    t.Setenv("DB_HOST", "db")
    t.Setenv("DB_PORT", "3306")
    t.Setenv("DB_NAME", "rental")

    cfg := Load()
    assert.Equal(t, StoreMySQL, cfg.Store)
    assert.True(t, cfg.MigrateOnStart)
    assert.Equal(t, "db", cfg.DBHost)
    assert.Empty(t, cfg.DBPass)
}

func TestLoadQueueConfig(t *testing.T) {
    t.Setenv("AMQP_URL", "amqp://fallback/")
    q := LoadQueueConfig()
    assert.False(t, q.Enabled)
    assert.Equal(t, "amqp://fallback/", q.URL)
    assert.Equal(t, "rental.events", q.Queue)

    t.Setenv("RABBITMQ_URL", "amqp://primary/")
    t.Setenv("RABBITMQ_ENABLED", "yes")
    q = LoadQueueConfig()
    assert.True(t, q.Enabled)
    assert.Equal(t, "amqp://primary/", q.URL)
}

func TestLoadRateLimitConfig(t *testing.T) {
    limits := LoadRateLimitConfig()
    assert.True(t, limits.API.Enabled)
    assert.Equal(t, 60, limits.API.Capacity)
    assert.Equal(t, "ip_user_route", limits.API.KeyStrategy)
    assert.Equal(t, 10, limits.Auth.Capacity)
    assert.Equal(t, 6*time.Second, limits.Auth.RefillInterval)
    assert.Equal(t, "ip", limits.Auth.KeyStrategy)

    t.Setenv("RATE_LIMIT_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
    t.Setenv("RATE_LIMIT_TTL", "1s")
    t.Setenv("AUTH_RATE_LIMIT_KEY_STRATEGY", "IP_ROUTE")
    limits = LoadRateLimitConfig()
    assert.Equal(t, 1, limits.API.Capacity)
    assert.Equal(t, 5*time.Minute, limits.API.TTL)
    assert.Equal(t, "ip_route", limits.Auth.KeyStrategy)

    t.Setenv("RATE_LIMIT_ENABLED", "false")
    limits = LoadRateLimitConfig()
    assert.False(t, limits.API.Enabled)
    assert.False(t, limits.Auth.Enabled)
}

func TestLoadCacheConfig(t *testing.T) {
    c := LoadCacheConfig()
    assert.True(t, c.Enabled)
    assert.Equal(t, map[string]bool{"GET": true}, c.Methods)
    assert.Equal(t, time.Minute, c.TTL)
    assert.Equal(t, "rental:cache", c.Prefix)

    t.Setenv("CACHE_METHODS", "get, head")
    t.Setenv("CACHE_TTL", "bogus")
    t.Setenv("CACHE_ENABLED", "0")
    c = LoadCacheConfig()
    assert.False(t, c.Enabled)
    assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
    assert.Equal(t, time.Minute, c.TTL)
}

func TestRedisOptions(t *testing.T) {
    t.Setenv("REDIS_ADDR", "cache:6380")
    assert.Equal(t, "cache:6380", RedisOptions().Addr)

    t.Setenv("REDIS_HOST", "redis")
    t.Setenv("REDIS_PORT", "6379")
    t.Setenv("REDIS_DB", "2")
    t.Setenv("REDIS_TLS", "true")
    opts := RedisOptions()
    assert.Equal(t, "redis:6379", opts.Addr)
    assert.Equal(t, 2, opts.DB)
    assert.NotNil(t, opts.TLSConfig)
}
