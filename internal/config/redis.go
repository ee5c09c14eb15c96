package config

// Redis backs the rate limiter and the catalog response cache.  Both degrade
// when it is unreachable: the limiter switches to in-process buckets and the
// cache is bypassed.

import (
    "context"
    "crypto/tls"
    "os"
    "strconv"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisOptions builds client options from the environment:
//
//  REDIS_ADDR     host:port (default localhost:6379); REDIS_HOST + REDIS_PORT override it
//  REDIS_PASSWORD optional password
//  REDIS_DB       database number (default 0)
//  REDIS_TLS      enable TLS when true
func RedisOptions() *redis.Options {
    addr := getenv("REDIS_ADDR", "localhost:6379")
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
    opts := &redis.Options{
        Addr:     addr,
        Password: os.Getenv("REDIS_PASSWORD"),
        DB:       db,
    }
    if envBool("REDIS_TLS", false) {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    return opts
}

// NewRedisClient connects using RedisOptions.  It returns nil when
// REDIS_ENABLED is false or the server does not answer a ping within two
// seconds; callers treat nil as "no Redis".
func NewRedisClient(ctx context.Context) *redis.Client {
    if !envBool("REDIS_ENABLED", true) {
        return nil
    }
    client := redis.NewClient(RedisOptions())
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}
