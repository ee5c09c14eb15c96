package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/equipment-rental/internal/handler"
	"github.com/iliyamo/equipment-rental/internal/middleware"
	"github.com/iliyamo/equipment-rental/internal/model"
)

// RegisterCatalog registers the public product routes.  The identity is
// attached when present so rate limits are tracked per user.  Listings and
// categories go through the response cache; product detail and
// availability depend on current bookings and are always computed.
func RegisterCatalog(e *echo.Echo, p *handler.ProductHandler, jwtSecret string, limit, cache echo.MiddlewareFunc) {
	g := e.Group("/products", middleware.OptionalJWT(jwtSecret), limit)
	g.GET("", p.List, cache)
	g.GET("/categories", p.Categories, cache)
	g.GET("/:id", p.Get)
	g.GET("/:id/availability", p.Availability)
}

// RegisterAdmin registers product management under /admin.  Every route
// requires a valid JWT and the admin role.
func RegisterAdmin(e *echo.Echo, p *handler.ProductHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
		limit,
	)
	g.GET("/products", p.AdminList)
	g.POST("/products", p.Create)
	g.PUT("/products/:id", p.Update)
	g.DELETE("/products/:id", p.Delete)
}
