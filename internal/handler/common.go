package handler // handler defines http handlers

import (
    "errors"
    "log/slog"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/equipment-rental/internal/lib/sl"
    "github.com/iliyamo/equipment-rental/internal/middleware"
    "github.com/iliyamo/equipment-rental/internal/service"
    "github.com/iliyamo/equipment-rental/internal/validation"
)

// envelope wraps every JSON response.
type envelope struct {
    Success bool   `json:"success"`
    Data    any    `json:"data,omitempty"`
    Error   string `json:"error,omitempty"`
}

func respond(c echo.Context, status int, data any) error {
    return c.JSON(status, envelope{Success: true, Data: data})
}

func fail(c echo.Context, status int, msg string) error {
    return c.JSON(status, envelope{Error: msg})
}

// statusOf maps a service error kind to its HTTP status.
func statusOf(k service.Kind) int {
    switch k {
    case service.KindValidation:
        return http.StatusBadRequest
    case service.KindNotFound:
        return http.StatusNotFound
    case service.KindUnauthorized:
        return http.StatusUnauthorized
    case service.KindForbidden:
        return http.StatusForbidden
    case service.KindConflict:
        return http.StatusConflict
    }
    return http.StatusInternalServerError
}

// writeError renders err using its service kind.  Errors without a kind
// are logged and reported as 500.
func writeError(c echo.Context, log *slog.Logger, err error) error {
    var se *service.Error
    if !errors.As(err, &se) {
        log.Error("unhandled error", slog.String("path", c.Path()), sl.Err(err))
    }
    return fail(c, statusOf(service.KindOf(err)), service.Message(err))
}

// getUserID returns the authenticated caller set by middleware.JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
    id, ok := middleware.UserID(c)
    if !ok {
        return 0, service.Unauthorized("authentication required")
    }
    return id, nil
}

// bindValid decodes the JSON body into dst and runs the echo validator.
func bindValid(c echo.Context, dst any) error {
    if err := c.Bind(dst); err != nil {
        return service.Validation("invalid request body")
    }
    if err := c.Validate(dst); err != nil {
        return service.Validation(validation.Message(err))
    }
    return nil
}

func pathID(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, service.Validationf("invalid %s", name)
    }
    return id, nil
}

// parseDate accepts RFC 3339 or a bare YYYY-MM-DD, which means midnight UTC.
func parseDate(field, s string) (time.Time, error) {
    s = strings.TrimSpace(s)
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t.UTC(), nil
    }
    if t, err := time.Parse(time.DateOnly, s); err == nil {
        return t, nil
    }
    return time.Time{}, service.Validationf("%s must be a date (YYYY-MM-DD or RFC 3339)", field)
}

// optDate parses an optional date; the empty string yields nil.
func optDate(field, s string) (*time.Time, error) {
    if strings.TrimSpace(s) == "" {
        return nil, nil
    }
    t, err := parseDate(field, s)
    if err != nil {
        return nil, err
    }
    return &t, nil
}

// queryInt reads a positive integer query parameter; absent means 0.
func queryInt(c echo.Context, name string) (int, error) {
    s := c.QueryParam(name)
    if s == "" {
        return 0, nil
    }
    n, err := strconv.Atoi(s)
    if err != nil || n < 1 {
        return 0, service.Validationf("%s must be a positive integer", name)
    }
    return n, nil
}

func queryInt64(c echo.Context, name string) (*int64, error) {
    s := c.QueryParam(name)
    if s == "" {
        return nil, nil
    }
    n, err := strconv.ParseInt(s, 10, 64)
    if err != nil || n < 0 {
        return nil, service.Validationf("%s must be a non-negative integer", name)
    }
    return &n, nil
}

func queryBool(c echo.Context, name string) (*bool, error) {
    s := c.QueryParam(name)
    if s == "" {
        return nil, nil
    }
    b, err := strconv.ParseBool(s)
    if err != nil {
        return nil, service.Validationf("%s must be true or false", name)
    }
    return &b, nil
}
