package middleware

import (
    "log/slog"
    "time"

    "github.com/labstack/echo/v4"
)

// RequestLog writes one structured line per request.  It must run after
// echo's RequestID middleware so the id is present on the response.
func RequestLog(log *slog.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }

            req := c.Request()
            res := c.Response()
            attrs := []any{
                slog.String("method", req.Method),
                slog.String("path", req.URL.Path),
                slog.Int("status", res.Status),
                slog.Int64("latency_ms", time.Since(start).Milliseconds()),
                slog.String("req_id", res.Header().Get(echo.HeaderXRequestID)),
                slog.String("ip", c.RealIP()),
                slog.String("ua", req.UserAgent()),
            }
            if id, ok := UserID(c); ok {
                attrs = append(attrs, slog.Uint64("user_id", id))
            }
            switch {
            case res.Status >= 500:
                log.Error("request", attrs...)
            case res.Status >= 400:
                log.Warn("request", attrs...)
            default:
                log.Info("request", attrs...)
            }
            return nil
        }
    }
}
