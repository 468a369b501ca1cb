package middleware

// identity.go holds the caller lookups shared by the rate limiters.

import (
	"github.com/labstack/echo/v4"
)

// memberID returns the authenticated member stored by JWTAuth, or "anon"
// for public routes.
func memberID(c echo.Context) string {
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s
	}
	return "anon"
}

// clientIP returns the caller's address as echo resolves it.
func clientIP(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}
