package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pcbang-kiosk/internal/config"
	"github.com/iliyamo/pcbang-kiosk/internal/payment"
	"github.com/iliyamo/pcbang-kiosk/internal/realtime"
	"github.com/iliyamo/pcbang-kiosk/internal/repository"
	"github.com/iliyamo/pcbang-kiosk/internal/session"
)

// SeatHandler drives seat sessions, food orders placed from a seat and the
// seat terminal push channel.
type SeatHandler struct {
	Cfg      config.Config
	Sessions *session.Manager
	Payments *payment.Service
	Orders   *repository.OrderRepo
	Hub      *realtime.Hub
}

type checkoutReq struct {
	Items  []string `json:"items"`
	Method string   `json:"method"`
}

// occupantOnly rejects callers that neither sit at seat nor are admins.
func (h *SeatHandler) occupantOnly(c echo.Context, seat int) error {
	if callerIsAdmin(c) {
		return nil
	}
	if occ, ok := h.Sessions.Occupant(seat); ok && occ == callerID(c) {
		return nil
	}
	return session.ErrNotOccupant
}

// List returns the live seat table.
func (h *SeatHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"seats": h.Sessions.Snapshot()})
}

// Activate starts the caller's session at :number.
func (h *SeatHandler) Activate(c echo.Context) error {
	seat, err := seatParam(c)
	if err != nil {
		return fail(c, err, "")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	remaining, err := h.Sessions.Activate(ctx, callerID(c), seat)
	if err != nil {
		return fail(c, err, "activate seat failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"seat": seat, "remaining_time": remaining})
}

// Reserve holds :number for the caller.
func (h *SeatHandler) Reserve(c echo.Context) error {
	seat, err := seatParam(c)
	if err != nil {
		return fail(c, err, "")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	if err := h.Sessions.Reserve(ctx, callerID(c), seat); err != nil {
		return fail(c, err, "reserve seat failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"seat": seat, "reserved": true})
}

// Deactivate ends the caller's session or reservation at :number.
func (h *SeatHandler) Deactivate(c echo.Context) error {
	seat, err := seatParam(c)
	if err != nil {
		return fail(c, err, "")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	if err := h.Sessions.Deactivate(ctx, callerID(c), seat); err != nil {
		return fail(c, err, "deactivate seat failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Checkout pays for a food order delivered to :number.
func (h *SeatHandler) Checkout(c echo.Context) error {
	seat, err := seatParam(c)
	if err != nil {
		return fail(c, err, "")
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	method, err := payment.ParseMethod(req.Method)
	if err != nil {
		return fail(c, err, "")
	}
	if err := h.occupantOnly(c, seat); err != nil {
		return fail(c, err, "")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	receipt, err := h.Payments.Checkout(ctx, callerID(c), seat, req.Items, method)
	if err != nil {
		return fail(c, err, "checkout failed")
	}
	return c.JSON(http.StatusCreated, receipt)
}

// ListOrders returns the pending orders of :number.
func (h *SeatHandler) ListOrders(c echo.Context) error {
	seat, err := seatParam(c)
	if err != nil {
		return fail(c, err, "")
	}
	if err := h.occupantOnly(c, seat); err != nil {
		return fail(c, err, "")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	out, err := h.Orders.ListBySeat(ctx, seat)
	if err != nil {
		return fail(c, err, "load orders failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": out})
}

// CancelOrders drops every pending order of :number.
func (h *SeatHandler) CancelOrders(c echo.Context) error {
	seat, err := seatParam(c)
	if err != nil {
		return fail(c, err, "")
	}
	if err := h.occupantOnly(c, seat); err != nil {
		return fail(c, err, "")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	receipt, err := h.Payments.Cancel(ctx, seat)
	if err != nil {
		return fail(c, err, "cancel orders failed")
	}
	return c.JSON(http.StatusOK, receipt)
}

// Terminal upgrades the request to the websocket that carries logout and
// remaining-time commands to the terminal at :number.
func (h *SeatHandler) Terminal(c echo.Context) error {
	seat, err := seatParam(c)
	if err != nil {
		return fail(c, err, "")
	}
	if err := h.occupantOnly(c, seat); err != nil {
		return fail(c, err, "")
	}
	conn, err := realtime.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("seat terminal upgrade failed", slog.Int("seat", seat), slog.Any("error", err))
		return nil
	}
	h.Hub.Serve(conn, seat, callerID(c))
	return nil
}
