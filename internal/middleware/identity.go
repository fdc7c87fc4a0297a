package middleware

// identity.go holds helpers shared by the cache, rate limit and logging
// middleware for naming the caller of a request.

import "github.com/labstack/echo/v4"

// currentUserID returns the user id stored by JWTAuth, or "anon" for
// unauthenticated requests.
func currentUserID(c echo.Context) string {
	if s, ok := c.Get(CtxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}

// clientIP returns the caller's address as Echo resolves it.
func clientIP(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}
