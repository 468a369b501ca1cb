package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/pcbang-kiosk/internal/handler"
	"github.com/iliyamo/pcbang-kiosk/internal/logging"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health  *handler.HealthHandler
	Auth    *handler.AuthHandler
	Member  *handler.MemberHandler
	Seat    *handler.SeatHandler
	Admin   *handler.AdminHandler
	Metrics http.Handler
}

// Middlewares are the rate limiters and the catalog cache built by the
// caller from config and the optional Redis client.
type Middlewares struct {
	APILimit   echo.MiddlewareFunc
	LoginLimit echo.MiddlewareFunc
	Cache      echo.MiddlewareFunc
}

// New builds the Echo instance with every route of the kiosk API.
func New(h Handlers, mw Middlewares, jwtSecret string, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	if logger != nil {
		e.Use(logging.RequestLogger(logger))
	}

	RegisterRoutes(e, h.Health, h.Metrics)
	RegisterAuth(e, h.Auth, mw.LoginLimit)
	RegisterMember(e, h.Member, h.Seat, jwtSecret, mw.APILimit, mw.Cache)
	RegisterAdmin(e, h.Admin, jwtSecret, mw.APILimit)
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints: the
// health check used by load balancers and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler, metrics http.Handler) {
	e.GET("/healthz", health.Health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers sign-up and login under /v1/auth.  Login and
// registration share the stricter per-IP limit.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, loginLimit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, orPass(loginLimit))
	g.POST("/login", a.Login, orPass(loginLimit))
	g.GET("/check-id", a.CheckID)
}

// orPass substitutes a no-op for an unset middleware.
func orPass(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	if mw == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return mw
}
