package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/line-event-reservation/internal/middleware"
	"github.com/iliyamo/line-event-reservation/internal/model"
	"github.com/iliyamo/line-event-reservation/internal/service"
)

// actorFrom builds the lifecycle actor from the values JWTAuth stored on
// the context.  Requests that did not pass JWTAuth yield the zero Actor,
// which every lifecycle operation rejects as unauthorized.
func actorFrom(c echo.Context) service.Actor {
	uid, _ := c.Get(middleware.CtxUserID).(string)
	role, _ := c.Get(middleware.CtxRole).(string)
	return service.Actor{UserID: uid, Role: model.Role(role)}
}
