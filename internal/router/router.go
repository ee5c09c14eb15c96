package router // package router defines how HTTP routes are registered for the API

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/equipment-rental/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/equipment-rental/internal/middleware" // JWT, roles, rate limit, cache, logging
	"github.com/iliyamo/equipment-rental/internal/validation"
)

// RegisterMiddlewares installs the middleware every request passes through,
// the JSON error handler and the request validator.
func RegisterMiddlewares(e *echo.Echo, log *slog.Logger) {
	e.HideBanner = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = errorHandler(log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.Metrics())
	e.Use(middleware.RequestLog(log))
}

// RegisterRoutes registers the operational endpoints: health check and
// Prometheus metrics.  db may be nil when no database is in use.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// errorHandler renders errors that escape the handlers (unknown routes,
// wrong methods, recovered panics) in the same envelope the handlers use.
func errorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		msg := http.StatusText(status)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(status)
			}
		}
		if status >= http.StatusInternalServerError {
			log.Error("request failed", slog.String("path", c.Request().URL.Path), slog.String("error", err.Error()))
			msg = http.StatusText(status)
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, map[string]any{"success": false, "error": msg})
		}
		if werr != nil {
			log.Error("write error response", slog.String("error", werr.Error()))
		}
	}
}
