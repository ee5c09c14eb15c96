package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// RateLimitConfig configures one token bucket.  Buckets live in Redis when a
// client is available and fall back to process memory otherwise.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int           // bucket size (burst)
    RefillTokens   int           // tokens added every RefillInterval
    RefillInterval time.Duration
    TTL            time.Duration // idle buckets expire after this
    KeyStrategy    string        // ip, user, route, ip_user, ip_route, user_route, ip_user_route
    Prefix         string
}

// RateLimits groups the general API bucket with the stricter one applied to
// the unauthenticated /auth routes.
type RateLimits struct {
    API  RateLimitConfig
    Auth RateLimitConfig
}

// LoadRateLimitConfig reads RATE_LIMIT_* for the API bucket and
// AUTH_RATE_LIMIT_* for the auth bucket.  The auth bucket defaults to ten
// attempts refilled one per six seconds, keyed by client IP.
func LoadRateLimitConfig() RateLimits {
    enabled := envBool("RATE_LIMIT_ENABLED", true)
    api := bucket("RATE_LIMIT", RateLimitConfig{
        Enabled:        enabled,
        Capacity:       60,
        RefillTokens:   1,
        RefillInterval: time.Second,
        TTL:            10 * time.Minute,
        KeyStrategy:    "ip_user_route",
        Prefix:         "rental:rl",
    })
    auth := bucket("AUTH_RATE_LIMIT", RateLimitConfig{
        Enabled:        enabled,
        Capacity:       10,
        RefillTokens:   1,
        RefillInterval: 6 * time.Second,
        TTL:            10 * time.Minute,
        KeyStrategy:    "ip",
        Prefix:         "rental:rl:auth",
    })
    return RateLimits{API: api, Auth: auth}
}

func bucket(prefix string, def RateLimitConfig) RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled:        def.Enabled,
        Capacity:       envInt(prefix+"_CAPACITY", def.Capacity),
        RefillTokens:   envInt(prefix+"_REFILL_TOKENS", def.RefillTokens),
        RefillInterval: envDur(prefix+"_REFILL_INTERVAL", def.RefillInterval),
        TTL:            envDur(prefix+"_TTL", def.TTL),
        KeyStrategy:    strings.ToLower(envStr(prefix+"_KEY_STRATEGY", def.KeyStrategy)),
        Prefix:         envStr(prefix+"_PREFIX", def.Prefix),
    }
    if cfg.Capacity < 1 {
        cfg.Capacity = 1
    }
    if cfg.RefillTokens < 1 {
        cfg.RefillTokens = 1
    }
    if cfg.RefillInterval <= 0 {
        cfg.RefillInterval = time.Second
    }
    if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
        cfg.TTL = minTTL
    }
    return cfg
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    switch strings.ToLower(os.Getenv(k)) {
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
        return dur
    }
    return d
}
