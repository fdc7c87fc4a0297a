package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/line-event-reservation/internal/handler"
	"github.com/iliyamo/line-event-reservation/internal/middleware"
	"github.com/iliyamo/line-event-reservation/internal/model"
)

// RegisterAdmin registers organizer endpoints under /v1/admin.  All routes
// require a valid JWT and the admin role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminEventHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/events", h.List)
	g.POST("/events", h.Create)
	g.PUT("/events/:id", h.Update)
	g.DELETE("/events/:id", h.Delete)
	g.GET("/stats", h.Stats)
	// Images are capped at 5MB; leave room for the multipart envelope.
	g.POST("/uploads", h.Upload, echomw.BodyLimit("6M"))
}
