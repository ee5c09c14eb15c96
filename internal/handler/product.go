package handler

import (
    "context"
    "log/slog"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/equipment-rental/internal/lib/sl"
    "github.com/iliyamo/equipment-rental/internal/model"
    "github.com/iliyamo/equipment-rental/internal/service"
)

// CacheInvalidator drops cached catalog responses after a product write.
type CacheInvalidator interface {
    Invalidate(ctx context.Context) error
}

// ProductHandler serves the public catalog and the admin product routes.
type ProductHandler struct {
    Catalog *service.CatalogService
    Cache   CacheInvalidator
    Log     *slog.Logger
}

func NewProductHandler(catalog *service.CatalogService, cache CacheInvalidator, log *slog.Logger) *ProductHandler {
    if catalog == nil {
        panic("nil catalog service passed to NewProductHandler")
    }
    return &ProductHandler{Catalog: catalog, Cache: cache, Log: log}
}

// productQuery reads the catalog filters shared by the public and admin
// listings.
func productQuery(c echo.Context) (model.ProductQuery, error) {
    q := model.ProductQuery{
        Category: c.QueryParam("category"),
        Search:   c.QueryParam("search"),
    }
    var err error
    if q.MinPrice, err = queryInt64(c, "minPrice"); err != nil {
        return q, err
    }
    if q.MaxPrice, err = queryInt64(c, "maxPrice"); err != nil {
        return q, err
    }
    if q.Available, err = queryBool(c, "available"); err != nil {
        return q, err
    }
    if q.Page, err = queryInt(c, "page"); err != nil {
        return q, err
    }
    if q.Limit, err = queryInt(c, "limit"); err != nil {
        return q, err
    }
    return q, nil
}

// List: GET /products
func (h *ProductHandler) List(c echo.Context) error {
    q, err := productQuery(c)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    out, err := h.Catalog.List(c.Request().Context(), q)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return respond(c, http.StatusOK, out)
}

// Categories: GET /products/categories
func (h *ProductHandler) Categories(c echo.Context) error {
    cats, err := h.Catalog.Categories(c.Request().Context())
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return respond(c, http.StatusOK, cats)
}

// Get: GET /products/:id
func (h *ProductHandler) Get(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return writeError(c, h.Log, err)
    }
    p, err := h.Catalog.Get(c.Request().Context(), id)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return respond(c, http.StatusOK, p)
}

// Availability: GET /products/:id/availability?startDate&endDate&quantity
// An absent quantity means one unit; an explicit value must be positive.
func (h *ProductHandler) Availability(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return writeError(c, h.Log, err)
    }
    if c.QueryParam("startDate") == "" || c.QueryParam("endDate") == "" {
        return fail(c, http.StatusBadRequest, "startDate and endDate are required")
    }
    start, err := parseDate("startDate", c.QueryParam("startDate"))
    if err != nil {
        return writeError(c, h.Log, err)
    }
    end, err := parseDate("endDate", c.QueryParam("endDate"))
    if err != nil {
        return writeError(c, h.Log, err)
    }
    qty := 1
    if s := c.QueryParam("quantity"); s != "" {
        if qty, err = strconv.Atoi(s); err != nil || qty < 1 {
            return fail(c, http.StatusBadRequest, "quantity must be a positive integer")
        }
    }
    a, err := h.Catalog.Availability(c.Request().Context(), id, start, end, qty)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return respond(c, http.StatusOK, a)
}

// AdminList: GET /admin/products, soft-deleted products included.
func (h *ProductHandler) AdminList(c echo.Context) error {
    q, err := productQuery(c)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    out, err := h.Catalog.AdminList(c.Request().Context(), q)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return respond(c, http.StatusOK, out)
}

// Create: POST /admin/products
func (h *ProductHandler) Create(c echo.Context) error {
    var in service.ProductInput
    if err := bindValid(c, &in); err != nil {
        return writeError(c, h.Log, err)
    }
    p, err := h.Catalog.CreateProduct(c.Request().Context(), in)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    h.invalidate(c)
    return respond(c, http.StatusCreated, p)
}

// Update: PUT /admin/products/:id
func (h *ProductHandler) Update(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return writeError(c, h.Log, err)
    }
    var in service.ProductPatch
    if err := bindValid(c, &in); err != nil {
        return writeError(c, h.Log, err)
    }
    p, err := h.Catalog.UpdateProduct(c.Request().Context(), id, in)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    h.invalidate(c)
    return respond(c, http.StatusOK, p)
}

// Delete: DELETE /admin/products/:id (soft delete)
func (h *ProductHandler) Delete(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return writeError(c, h.Log, err)
    }
    if err := h.Catalog.DeleteProduct(c.Request().Context(), id); err != nil {
        return writeError(c, h.Log, err)
    }
    h.invalidate(c)
    return respond(c, http.StatusOK, echo.Map{"id": id, "status": model.ProductDeleted})
}

// invalidate drops cached catalog pages.  A failure only delays freshness
// until the entries expire, so it is logged and not returned.
func (h *ProductHandler) invalidate(c echo.Context) {
    if h.Cache == nil {
        return
    }
    if err := h.Cache.Invalidate(c.Request().Context()); err != nil {
        h.Log.Warn("cache invalidation failed", sl.Err(err))
    }
}
