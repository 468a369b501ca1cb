package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pcbang-kiosk/internal/handler"
	"github.com/iliyamo/pcbang-kiosk/internal/middleware"
	"github.com/iliyamo/pcbang-kiosk/internal/model"
)

// RegisterMember registers the member-facing endpoints under /v1.  The
// catalog listings are public and cached; everything else requires a valid
// JWT with the MEMBER or ADMIN role.
func RegisterMember(e *echo.Echo, m *handler.MemberHandler, s *handler.SeatHandler, jwtSecret string, apiLimit, cache echo.MiddlewareFunc) {
	pub := e.Group("/v1", orPass(apiLimit))
	pub.GET("/ranking", m.Ranking, orPass(cache))
	pub.GET("/plans", m.ListPlans, orPass(cache))
	pub.GET("/foods", m.ListFoods, orPass(cache))

	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleMember, model.RoleAdmin),
		orPass(apiLimit),
	)
	g.GET("/me", m.Me)
	g.PUT("/me", m.UpdateMe)
	g.POST("/plans/:key/purchase", m.Purchase)

	// Seat sessions.  Only the occupant (or an admin) may order, cancel or
	// attach a terminal; the handlers check that against the live table.
	g.GET("/seats", s.List)
	g.POST("/seats/:number/activate", s.Activate)
	g.POST("/seats/:number/reserve", s.Reserve)
	g.POST("/seats/:number/deactivate", s.Deactivate)
	g.POST("/seats/:number/checkout", s.Checkout)
	g.GET("/seats/:number/orders", s.ListOrders)
	g.DELETE("/seats/:number/orders", s.CancelOrders)
	g.GET("/seats/:number/ws", s.Terminal)
}
