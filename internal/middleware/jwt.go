package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses

    echojwt "github.com/labstack/echo-jwt/v4" // bearer token extraction and error plumbing
    "github.com/labstack/echo/v4"             // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/equipment-rental/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the caller's identity into the request context.  The provided
// secret must match the one used when issuing tokens.  Requests without a
// valid token are answered with 401.  Handlers read the identity via
// UserID(c) and Role(c).
func JWTAuth(secret string) echo.MiddlewareFunc {
    return bearer(secret, false)
}

// OptionalJWT attaches the caller's identity when a valid token is present
// and lets every request through otherwise.  Used on public routes whose
// rate limits are keyed per user.
func OptionalJWT(secret string) echo.MiddlewareFunc {
    return bearer(secret, true)
}

func bearer(secret string, optional bool) echo.MiddlewareFunc {
    parse := echojwt.WithConfig(echojwt.Config{
        // Only HS256 tokens issued by utils.NewAccessToken are accepted.
        ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
            return utils.ParseAccessToken(secret, auth)
        },
        ContinueOnIgnoredError: optional,
        ErrorHandler: func(c echo.Context, err error) error {
            if optional {
                return nil
            }
            msg := "invalid token"
            if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
                msg = "missing bearer token"
            }
            return c.JSON(http.StatusUnauthorized, errorBody(msg))
        },
    })
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        // echojwt stores the parsed value under "user"; copy it into the
        // typed keys before calling the route handler.
        return parse(func(c echo.Context) error {
            if id, ok := c.Get("user").(utils.Identity); ok {
                setIdentity(c, id)
            }
            return next(c)
        })
    }
}
