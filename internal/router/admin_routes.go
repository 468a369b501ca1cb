package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pcbang-kiosk/internal/handler"
	"github.com/iliyamo/pcbang-kiosk/internal/middleware"
	"github.com/iliyamo/pcbang-kiosk/internal/model"
)

// RegisterAdmin registers counter-staff endpoints under /v1/admin.
// All routes require a valid JWT and the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string, apiLimit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
		orPass(apiLimit),
	)

	// ---- Members ----
	g.GET("/members", a.ListMembers)
	g.DELETE("/members/:id", a.DeleteMember)
	g.PUT("/members/:id/time", a.SetTime)

	// ---- Plans ----
	g.PUT("/plans/:key", a.PutPlan)
	g.DELETE("/plans/:key", a.DeletePlan)

	// ---- Foods ----
	g.POST("/foods", a.CreateFood)
	g.PUT("/foods/:code", a.UpdateFood)
	g.DELETE("/foods/:code", a.DeleteFood)
}
