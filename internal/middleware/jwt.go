package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pcbang-kiosk/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the member ID and role claims into the request context.  Handlers
// read them via `c.Get("user_id")` and `c.Get("role")`.
//
// Seat terminals cannot set headers on a websocket handshake, so upgrade
// requests may carry the token in the `token` query parameter instead.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request())
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set("user_id", claims.MemberID)
			c.Set("role", claims.Role)
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		return raw, raw != ""
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		raw := r.URL.Query().Get("token")
		return raw, raw != ""
	}
	return "", false
}
