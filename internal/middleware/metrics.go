package middleware

import (
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/equipment-rental/internal/metrics"
)

// Metrics records request counts and latency labelled by the matched route
// template, so /rentals/1 and /rentals/2 share a series.
func Metrics() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }
            route := c.Path()
            if route == "" {
                route = "unmatched"
            }
            method := c.Request().Method
            metrics.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(c.Response().Status)).Inc()
            metrics.HTTPDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
            return nil
        }
    }
}
