package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/line-event-reservation/internal/handler"
	"github.com/iliyamo/line-event-reservation/internal/middleware"
	"github.com/iliyamo/line-event-reservation/internal/model"
)

// RegisterReservations registers the reservation endpoints of signed-in
// users under /v1.  All routes require a valid JWT.  limit throttles the
// two creation routes; ownership checks happen in the lifecycle engine.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.POST("/reservations", h.Create, limit)
	g.POST("/checkout", h.Checkout, limit)
	g.GET("/my-reservations", h.Mine)
	g.GET("/reservations/:id", h.Get)
	g.POST("/reservations/:id/cancel", h.Cancel)

	// Check-in is performed by staff at the door.
	g.POST("/reservations/:id/checkin", h.CheckIn, middleware.RequireRole(model.RoleAdmin))
}
