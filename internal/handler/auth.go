package handler

import (
    "context"   // provides context with cancellation for store calls
    "errors"
    "log/slog"
    "net/http"  // HTTP status codes and primitives
    "strings"   // string manipulation utilities
    "time"      // timeouts for store calls

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "github.com/iliyamo/equipment-rental/internal/config"     // app configuration
    "github.com/iliyamo/equipment-rental/internal/middleware" // identity set by JWTAuth/OptionalJWT
    "github.com/iliyamo/equipment-rental/internal/model"
    "github.com/iliyamo/equipment-rental/internal/repository" // sentinel errors
    "github.com/iliyamo/equipment-rental/internal/service"
    "github.com/iliyamo/equipment-rental/internal/utils" // hashing and token issuing
)

// UserStore persists accounts.  Implemented by repository.UserRepo and
// memory.UserRepo.
type UserStore interface {
    Create(ctx context.Context, u *model.User) error
    GetByEmail(ctx context.Context, email string) (model.User, error)
    GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
    StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
    ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
    ConsumeRefresh(ctx context.Context, tokenHash string) (uint64, error)
    RevokeByHash(ctx context.Context, tokenHash string) error
    RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg    config.Config
    Users  UserStore
    Tokens TokenStore
    Log    *slog.Logger
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, log *slog.Logger) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Log: log}
}

const storeTimeout = 5 * time.Second

// ----- DTOs -----

type registerReq struct {
    Email    string `json:"email" validate:"required,email,max=255"`
    Password string `json:"password" validate:"required,min=6,max=72"`
    FullName string `json:"fullName" validate:"omitempty,max=255"`
}
type loginReq struct {
    Email    string `json:"email" validate:"required"`
    Password string `json:"password" validate:"required"`
}
type refreshReq struct {
    RefreshToken string `json:"refreshToken"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}
type userPart struct {
    ID       uint64 `json:"id"`
    Email    string `json:"email"`
    FullName string `json:"fullName,omitempty"`
    Role     string `json:"role"`
}
type authResp struct {
    User    userPart  `json:"user"`
    Access  tokenPart `json:"access"`
    Refresh tokenPart `json:"refresh"`
}

func toUserPart(u model.User) userPart {
    return userPart{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role}
}

// Register: create a user and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := bindValid(c, &req); err != nil {
        return writeError(c, h.Log, err)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
    defer cancel()

    hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
    if err != nil {
        return writeError(c, h.Log, service.Internal("handler.Register", err))
    }
    u := model.User{
        Email:        req.Email,
        PasswordHash: hash,
        FullName:     strings.TrimSpace(req.FullName),
        Role:         model.RoleUser,
        IsActive:     true,
    }
    if err := h.Users.Create(ctx, &u); err != nil {
        if errors.Is(err, repository.ErrEmailExists) {
            return fail(c, http.StatusConflict, "email already exists")
        }
        return writeError(c, h.Log, err)
    }
    h.Log.Info("user registered", slog.Uint64("user_id", u.ID))
    return h.issue(ctx, c, http.StatusCreated, u)
}

// Login: verify credentials and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := bindValid(c, &req); err != nil {
        return writeError(c, h.Log, err)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
    defer cancel()

    u, err := h.Users.GetByEmail(ctx, req.Email)
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return fail(c, http.StatusUnauthorized, "invalid credentials")
        }
        return writeError(c, h.Log, err)
    }
    if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
        return fail(c, http.StatusUnauthorized, "invalid credentials")
    }
    return h.issue(ctx, c, http.StatusOK, u)
}

// Refresh: consume the old token (validate + revoke in one step), issue a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return fail(c, http.StatusBadRequest, "refreshToken is required")
    }
    hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

    ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
    defer cancel()

    userID, err := h.Tokens.ConsumeRefresh(ctx, hash)
    if err != nil {
        if errors.Is(err, repository.ErrTokenInvalid) {
            return fail(c, http.StatusUnauthorized, "invalid refresh token")
        }
        return writeError(c, h.Log, err)
    }
    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return fail(c, http.StatusUnauthorized, "invalid refresh token")
        }
        return writeError(c, h.Log, err)
    }
    if !u.IsActive {
        return fail(c, http.StatusUnauthorized, "invalid refresh token")
    }
    return h.issue(ctx, c, http.StatusOK, u)
}

// Logout revokes one refresh token when it is supplied in the body, or
// every refresh token of the bearer when only an access token is present.
// The route runs behind OptionalJWT.
func (h *AuthHandler) Logout(c echo.Context) error {
    var req refreshReq
    _ = c.Bind(&req)
    refreshToken := strings.TrimSpace(req.RefreshToken)

    ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
    defer cancel()

    if refreshToken != "" {
        hash := utils.HashRefreshRaw(refreshToken)
        if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
            if errors.Is(err, repository.ErrTokenInvalid) {
                return fail(c, http.StatusUnauthorized, "invalid refresh token")
            }
            return writeError(c, h.Log, err)
        }
        if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
            return writeError(c, h.Log, err)
        }
        return c.NoContent(http.StatusNoContent)
    }
    if uid, ok := middleware.UserID(c); ok {
        if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
            return writeError(c, h.Log, err)
        }
        return c.NoContent(http.StatusNoContent)
    }
    return fail(c, http.StatusBadRequest, "provide Authorization header or refreshToken")
}

// Me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
    defer cancel()
    u, err := h.Users.GetByID(ctx, uid)
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return fail(c, http.StatusNotFound, "user not found")
        }
        return writeError(c, h.Log, err)
    }
    return respond(c, http.StatusOK, toUserPart(u))
}

// issue signs an access token, stores a fresh refresh token and writes both.
func (h *AuthHandler) issue(ctx context.Context, c echo.Context, status int, u model.User) error {
    const op = "handler.AuthHandler.issue"
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, utils.Identity{UserID: u.ID, Role: u.Role, Email: u.Email}, h.Cfg.AccessTTLMin)
    if err != nil {
        return writeError(c, h.Log, service.Internal(op, err))
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
    if err != nil {
        return writeError(c, h.Log, service.Internal(op, err))
    }
    if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        return writeError(c, h.Log, service.Internal(op, err))
    }
    return respond(c, status, authResp{
        User:    toUserPart(u),
        Access:  tokenPart{Token: access.Token, Expires: access.Exp},
        Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
    })
}
