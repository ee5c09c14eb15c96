package middleware

import (
    "context"
    "io"
    "log/slog"
    "net/http"
    "net/http/httptest"
    "strconv"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/equipment-rental/internal/config"
    "github.com/iliyamo/equipment-rental/internal/model"
    "github.com/iliyamo/equipment-rental/internal/utils"
)

const testSecret = "test-secret"

func quietLog() *slog.Logger {
    return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
    t.Helper()
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    return mr, rdb
}

func bearerFor(t *testing.T, id utils.Identity) string {
    t.Helper()
    tok, err := utils.NewAccessToken(testSecret, id, 5)
    require.NoError(t, err)
    return "Bearer " + tok.Token
}

func do(e *echo.Echo, method, target, auth string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, target, nil)
    if auth != "" {
        req.Header.Set(echo.HeaderAuthorization, auth)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func whoami(c echo.Context) error {
    id, ok := UserID(c)
    return c.JSON(http.StatusOK, map[string]any{"id": id, "ok": ok, "role": Role(c)})
}

func TestJWTAuth(t *testing.T) {
    e := echo.New()
    e.GET("/me", whoami, JWTAuth(testSecret))

    rec := do(e, http.MethodGet, "/me", "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
    assert.JSONEq(t, `{"success":false,"error":"missing bearer token"}`, rec.Body.String())

    rec = do(e, http.MethodGet, "/me", "Bearer nonsense")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
    assert.JSONEq(t, `{"success":false,"error":"invalid token"}`, rec.Body.String())

    rec = do(e, http.MethodGet, "/me", bearerFor(t, utils.Identity{UserID: 7, Role: model.RoleUser}))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"id":7,"ok":true,"role":"user"}`, rec.Body.String())
}

func TestOptionalJWT(t *testing.T) {
    e := echo.New()
    e.GET("/who", whoami, OptionalJWT(testSecret))

    rec := do(e, http.MethodGet, "/who", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"id":0,"ok":false,"role":""}`, rec.Body.String())

    rec = do(e, http.MethodGet, "/who", "Bearer broken")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"id":0,"ok":false,"role":""}`, rec.Body.String())

    rec = do(e, http.MethodGet, "/who", bearerFor(t, utils.Identity{UserID: 3, Role: model.RoleAdmin}))
    assert.JSONEq(t, `{"id":3,"ok":true,"role":"admin"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
    e := echo.New()
    e.GET("/admin", whoami, JWTAuth(testSecret), RequireRole(model.RoleAdmin))

    rec := do(e, http.MethodGet, "/admin", bearerFor(t, utils.Identity{UserID: 1, Role: model.RoleUser}))
    assert.Equal(t, http.StatusForbidden, rec.Code)
    assert.JSONEq(t, `{"success":false,"error":"forbidden"}`, rec.Body.String())

    rec = do(e, http.MethodGet, "/admin", bearerFor(t, utils.Identity{UserID: 2, Role: model.RoleAdmin}))
    assert.Equal(t, http.StatusOK, rec.Code)

    // Without JWTAuth in front there is no identity at all.
    e.GET("/bare", whoami, RequireRole(model.RoleAdmin))
    assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/bare", "").Code)
}

func limitCfg(capacity int) config.RateLimitConfig {
    return config.RateLimitConfig{
        Enabled:        true,
        Capacity:       capacity,
        RefillTokens:   1,
        RefillInterval: time.Hour,
        TTL:            10 * time.Hour,
        KeyStrategy:    "ip_route",
        Prefix:         "test:rl",
    }
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestTokenBucketRedis(t *testing.T) {
    mr, rdb := newRedis(t)
    e := echo.New()
    e.GET("/r", ok, NewTokenBucket(limitCfg(2), rdb, quietLog()))

    for i := 0; i < 2; i++ {
        rec := do(e, http.MethodGet, "/r", "")
        require.Equal(t, http.StatusOK, rec.Code)
        assert.Equal(t, strconv.Itoa(1-i), rec.Header().Get("X-RateLimit-Remaining"))
    }
    rec := do(e, http.MethodGet, "/r", "")
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.JSONEq(t, `{"success":false,"error":"too many requests"}`, rec.Body.String())
    assert.NotEmpty(t, rec.Header().Get("Retry-After"))

    keys := mr.Keys()
    require.Len(t, keys, 1)
    assert.Contains(t, keys[0], "test:rl:ip:")
}

func TestTokenBucketFallsBackWithoutRedis(t *testing.T) {
    e := echo.New()
    e.GET("/r", ok, NewTokenBucket(limitCfg(1), nil, quietLog()))

    assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/r", "").Code)
    rec := do(e, http.MethodGet, "/r", "")
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucketSurvivesRedisOutage(t *testing.T) {
    mr, rdb := newRedis(t)
    e := echo.New()
    e.GET("/r", ok, NewTokenBucket(limitCfg(1), rdb, quietLog()))

    mr.Close()
    assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/r", "").Code)
    assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodGet, "/r", "").Code)
}

func TestTokenBucketDisabled(t *testing.T) {
    cfg := limitCfg(1)
    cfg.Enabled = false
    e := echo.New()
    e.GET("/r", ok, NewTokenBucket(cfg, nil, quietLog()))
    for i := 0; i < 3; i++ {
        assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/r", "").Code)
    }
}

func cacheCfg() config.CacheConfig {
    return config.CacheConfig{
        Enabled:      true,
        Methods:      map[string]bool{http.MethodGet: true},
        TTL:          time.Minute,
        KeyStrategy:  "route_query",
        Prefix:       "test:cache",
        MaxBodyBytes: 64,
    }
}

func TestRedisCache(t *testing.T) {
    mr, rdb := newRedis(t)
    cfg := cacheCfg()
    calls := 0
    e := echo.New()
    e.GET("/items/:id", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusOK, map[string]any{"id": c.Param("id"), "n": calls})
    }, NewRedisCache(cfg, rdb, quietLog()))

    first := do(e, http.MethodGet, "/items/1?x=1", "")
    require.Equal(t, http.StatusOK, first.Code)
    assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

    second := do(e, http.MethodGet, "/items/1?x=1", "")
    assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
    assert.Equal(t, first.Body.String(), second.Body.String())
    assert.Equal(t, echo.MIMEApplicationJSON, second.Header().Get(echo.HeaderContentType))
    assert.Equal(t, 1, calls)

    // Different path parameter and query are separate entries.
    assert.Equal(t, "MISS", do(e, http.MethodGet, "/items/2?x=1", "").Header().Get("X-Cache"))
    assert.Equal(t, "MISS", do(e, http.MethodGet, "/items/1?x=2", "").Header().Get("X-Cache"))
    assert.Len(t, mr.Keys(), 3)

    inv := NewCacheInvalidator(cfg, rdb)
    require.NoError(t, inv.Invalidate(context.Background()))
    assert.Empty(t, mr.Keys())
    assert.Equal(t, "MISS", do(e, http.MethodGet, "/items/1?x=1", "").Header().Get("X-Cache"))
}

func TestRedisCacheSkipsErrorsAndLargeBodies(t *testing.T) {
    mr, rdb := newRedis(t)
    e := echo.New()
    mw := NewRedisCache(cacheCfg(), rdb, quietLog())
    e.GET("/missing", func(c echo.Context) error {
        return c.JSON(http.StatusNotFound, errorBody("nope"))
    }, mw)
    e.GET("/big", func(c echo.Context) error {
        return c.String(http.StatusOK, string(make([]byte, 200)))
    }, mw)

    assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/missing", "").Code)
    rec := do(e, http.MethodGet, "/big", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Len(t, rec.Body.Bytes(), 200)
    assert.Empty(t, mr.Keys())
}

func TestCacheInvalidatorWithoutRedis(t *testing.T) {
    assert.NoError(t, NewCacheInvalidator(cacheCfg(), nil).Invalidate(context.Background()))
    var inv *CacheInvalidator
    assert.NoError(t, inv.Invalidate(context.Background()))
}

func TestPayloadRoundTrip(t *testing.T) {
    hdr := http.Header{"Content-Type": {"application/json"}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
    require.NoError(t, err)
    status, got, body, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, hdr, got)
    assert.Equal(t, `{"a":1}`, string(body))

    _, _, _, ok = decodePayload([]byte{0, 1})
    assert.False(t, ok)
}
