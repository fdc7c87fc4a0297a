package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/line-event-reservation/internal/handler"    // handlers that implement the endpoints
	"github.com/iliyamo/line-event-reservation/internal/middleware" // JWT authentication and role enforcement
	"github.com/iliyamo/line-event-reservation/internal/model"      // roles
)

// RegisterRoutes registers routes that do not require authentication and
// are not part of the versioned API.  Currently it exposes only a health
// check backed by a database ping.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers LINE login under /v1/auth and the profile
// endpoint, which requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/line", a.LineLogin)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
}

// RegisterPublic registers the unauthenticated event catalog.  cache wraps
// the list and detail routes; the capacity counter is never cached so
// availability is always current.
func RegisterPublic(e *echo.Echo, p *handler.EventHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/events", p.List, cache)
	e.GET("/v1/events/:id", p.Get, cache)
	e.GET("/v1/events/:id/reservations/count", p.Count)
}

// RegisterWebhooks registers provider callbacks.  They authenticate by
// signature, not by JWT.
func RegisterWebhooks(e *echo.Echo, w *handler.WebhookHandler) {
	e.POST("/v1/webhooks/stripe", w.Stripe)
}
