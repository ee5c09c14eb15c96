package middleware

// identity.go holds the context keys written by the auth middleware and the
// accessors handlers and other middleware use to read them back.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/equipment-rental/internal/utils"
)

// Context keys set by JWTAuth and OptionalJWT.
const (
    ctxUserID = "user_id"
    ctxRole   = "role"
    ctxEmail  = "email"
)

func setIdentity(c echo.Context, id utils.Identity) {
    c.Set(ctxUserID, id.UserID)
    c.Set(ctxRole, id.Role)
    c.Set(ctxEmail, id.Email)
}

// UserID returns the authenticated user's id.  ok is false for anonymous
// requests.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(ctxUserID).(uint64)
    return id, ok && id != 0
}

// Role returns the authenticated user's role, or "" when anonymous.
func Role(c echo.Context) string {
    r, _ := c.Get(ctxRole).(string)
    return r
}

// identityKey identifies the caller in rate-limit keys: the user id, or
// "anon" when nobody is logged in.
func identityKey(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}

// errorBody is the failure envelope shared with the handlers.
func errorBody(msg string) map[string]any {
    return map[string]any{"success": false, "error": msg}
}
