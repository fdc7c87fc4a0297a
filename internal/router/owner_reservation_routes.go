package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/line-event-reservation/internal/handler"
	"github.com/iliyamo/line-event-reservation/internal/middleware"
	"github.com/iliyamo/line-event-reservation/internal/model"
)

// RegisterAdminReservations registers the organizer's reservation list
// under /v1/admin.  ?event_id= narrows it to one event.
func RegisterAdminReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/reservations", h.ListAll)
}
