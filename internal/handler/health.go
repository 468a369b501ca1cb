package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports whether the service can reach its backing stores.
type HealthHandler struct {
	DB    *sql.DB
	Redis *redis.Client // optional
}

// Health pings the database and, when configured, Redis.  It answers 200
// "ok" when the database is reachable and 503 otherwise; a Redis outage is
// reported but does not fail the check since the service degrades without
// it.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	body := echo.Map{"status": "ok", "db": "ok"}
	status := http.StatusOK
	if err := h.DB.PingContext(ctx); err != nil {
		body["status"], body["db"] = "degraded", err.Error()
		status = http.StatusServiceUnavailable
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			body["redis"] = err.Error()
		} else {
			body["redis"] = "ok"
		}
	}
	return c.JSON(status, body)
}
