package middleware // middleware provides shared request processing for handlers

import (
    "net/http" // http package defines standard HTTP status codes

    "github.com/labstack/echo/v4" // echo provides middleware chaining and context
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles.  It must run after
// JWTAuth.  Anonymous callers get 401; authenticated callers with another
// role get 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if _, ok := UserID(c); !ok {
                return c.JSON(http.StatusUnauthorized, errorBody("authentication required"))
            }
            if !allowed[Role(c)] {
                return c.JSON(http.StatusForbidden, errorBody("forbidden"))
            }
            return next(c)
        }
    }
}
