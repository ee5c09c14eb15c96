package handler

import (
    "context"
    "log/slog"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/equipment-rental/internal/model"
    "github.com/iliyamo/equipment-rental/internal/rental"
    "github.com/iliyamo/equipment-rental/internal/service"
)

// RentalHandler exposes a user's rental orders.  Every route runs behind
// JWTAuth; orders of other users are reported as not found.
type RentalHandler struct {
    Rentals *service.RentalService
    Log     *slog.Logger
}

func NewRentalHandler(rentals *service.RentalService, log *slog.Logger) *RentalHandler {
    if rentals == nil {
        panic("nil rental service passed to NewRentalHandler")
    }
    return &RentalHandler{Rentals: rentals, Log: log}
}

// ----- DTOs -----

type createRentalReq struct {
    ProductID uint64  `json:"productId" validate:"required"`
    StartDate string  `json:"startDate" validate:"required"`
    EndDate   string  `json:"endDate" validate:"required"`
    Quantity  *int    `json:"quantity"`
    Notes     *string `json:"notes" validate:"omitempty,max=2000"`
}

type updateRentalReq struct {
    StartDate *string `json:"startDate"`
    EndDate   *string `json:"endDate"`
    Quantity  *int    `json:"quantity"`
    Notes     *string `json:"notes" validate:"omitempty,max=2000"`
    Status    *string `json:"status"`
}

// Create: POST /rentals
func (h *RentalHandler) Create(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    var req createRentalReq
    if err := bindValid(c, &req); err != nil {
        return writeError(c, h.Log, err)
    }
    in := service.CreateRentalInput{ProductID: req.ProductID, Quantity: rental.DefaultQuantity, Notes: req.Notes}
    if in.StartDate, err = parseDate("startDate", req.StartDate); err != nil {
        return writeError(c, h.Log, err)
    }
    if in.EndDate, err = parseDate("endDate", req.EndDate); err != nil {
        return writeError(c, h.Log, err)
    }
    if req.Quantity != nil {
        if *req.Quantity < 1 {
            return fail(c, http.StatusBadRequest, "quantity must be positive")
        }
        in.Quantity = *req.Quantity
    }
    o, err := h.Rentals.Create(c.Request().Context(), uid, in)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return respond(c, http.StatusCreated, o)
}

// List: GET /rentals?status&startDate&endDate&page&limit
func (h *RentalHandler) List(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    q := model.RentalQuery{UserID: uid, Status: rental.Status(c.QueryParam("status"))}
    if q.StartFrom, err = optDate("startDate", c.QueryParam("startDate")); err != nil {
        return writeError(c, h.Log, err)
    }
    if q.EndUntil, err = optDate("endDate", c.QueryParam("endDate")); err != nil {
        return writeError(c, h.Log, err)
    }
    if q.Page, err = queryInt(c, "page"); err != nil {
        return writeError(c, h.Log, err)
    }
    if q.Limit, err = queryInt(c, "limit"); err != nil {
        return writeError(c, h.Log, err)
    }
    out, err := h.Rentals.List(c.Request().Context(), q)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return respond(c, http.StatusOK, out)
}

// Get: GET /rentals/:id
func (h *RentalHandler) Get(c echo.Context) error {
    uid, id, err := h.target(c)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    o, err := h.Rentals.Get(c.Request().Context(), uid, id)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return respond(c, http.StatusOK, o)
}

// Update: PUT /rentals/:id
func (h *RentalHandler) Update(c echo.Context) error {
    uid, id, err := h.target(c)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    var req updateRentalReq
    if err := bindValid(c, &req); err != nil {
        return writeError(c, h.Log, err)
    }
    in := service.UpdateRentalInput{Quantity: req.Quantity, Notes: req.Notes}
    if req.StartDate != nil {
        t, err := parseDate("startDate", *req.StartDate)
        if err != nil {
            return writeError(c, h.Log, err)
        }
        in.StartDate = &t
    }
    if req.EndDate != nil {
        t, err := parseDate("endDate", *req.EndDate)
        if err != nil {
            return writeError(c, h.Log, err)
        }
        in.EndDate = &t
    }
    if req.Status != nil {
        st, ok := rental.ParseStatus(*req.Status)
        if !ok {
            return fail(c, http.StatusBadRequest, "invalid status "+*req.Status)
        }
        in.Status = &st
    }
    o, err := h.Rentals.Update(c.Request().Context(), uid, id, in)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return respond(c, http.StatusOK, o)
}

// Cancel: PUT /rentals/:id/cancel
func (h *RentalHandler) Cancel(c echo.Context) error { return h.transition(c, h.Rentals.Cancel) }

// Confirm: PUT /rentals/:id/confirm
func (h *RentalHandler) Confirm(c echo.Context) error { return h.transition(c, h.Rentals.Confirm) }

// Complete: PUT /rentals/:id/complete
func (h *RentalHandler) Complete(c echo.Context) error { return h.transition(c, h.Rentals.Complete) }

type statusFunc func(ctx context.Context, userID, id uint64) (model.RentalOrder, error)

func (h *RentalHandler) transition(c echo.Context, fn statusFunc) error {
    uid, id, err := h.target(c)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    o, err := fn(c.Request().Context(), uid, id)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return respond(c, http.StatusOK, o)
}

// target returns the caller and the :id path parameter.
func (h *RentalHandler) target(c echo.Context) (uint64, uint64, error) {
    uid, err := getUserID(c)
    if err != nil {
        return 0, 0, err
    }
    id, err := pathID(c, "id")
    if err != nil {
        return 0, 0, err
    }
    return uid, id, nil
}
