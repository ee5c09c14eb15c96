package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/equipment-rental/internal/handler"
	"github.com/iliyamo/equipment-rental/internal/middleware"
)

// RegisterRentals registers the rental order endpoints under /rentals.  All
// routes require a valid JWT; ownership is enforced by the service.
func RegisterRentals(e *echo.Echo, h *handler.RentalHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/rentals", middleware.JWTAuth(jwtSecret), limit)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.PUT("/:id/cancel", h.Cancel)
	g.PUT("/:id/confirm", h.Confirm)
	g.PUT("/:id/complete", h.Complete)
}
