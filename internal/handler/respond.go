package handler // handler defines the HTTP handlers of the kiosk API

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pcbang-kiosk/internal/model"
	"github.com/iliyamo/pcbang-kiosk/internal/payment"
	"github.com/iliyamo/pcbang-kiosk/internal/repository"
)

// errInvalidSeat is reported for a seat path parameter that is not a
// positive number.
var errInvalidSeat = errors.New("invalid seat number")

// statusFor maps an outcome kind to the HTTP status returned to clients.
func statusFor(err error) int {
	switch {
	case errors.Is(err, payment.ErrEmptyOrder), errors.Is(err, payment.ErrUnknownMethod), errors.Is(err, errInvalidSeat):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrIntegrity), errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, repository.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error.  Client errors carry err's own message;
// server errors are logged and answered with msg only.
func fail(c echo.Context, err error, msg string) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error(msg, slog.Any("error", err), slog.String("path", c.Path()))
		return c.JSON(status, echo.Map{"error": msg, "kind": repository.Outcome(err)})
	}
	kind := repository.Outcome(err)
	if status == http.StatusBadRequest {
		kind = "invalid"
	}
	return c.JSON(status, echo.Map{"error": err.Error(), "kind": kind})
}

// callerID returns the member ID stored by the JWT middleware.
func callerID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}

func callerIsAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == model.RoleAdmin
}

// seatParam parses the :number path parameter.
func seatParam(c echo.Context) (int, error) {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil || n <= 0 {
		return 0, errInvalidSeat
	}
	return n, nil
}
