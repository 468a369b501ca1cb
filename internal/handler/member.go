package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pcbang-kiosk/internal/config"
	"github.com/iliyamo/pcbang-kiosk/internal/repository"
	"github.com/iliyamo/pcbang-kiosk/internal/utils"
)

// MemberHandler serves the signed-in member's own data and the catalog
// they can buy from.
type MemberHandler struct {
	Cfg     config.Config
	Members *repository.MemberRepo
	Plans   *repository.PlanRepo
	Foods   *repository.FoodRepo
}

type updateMeReq struct {
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// Me returns the caller's member record.
func (h *MemberHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	m, err := h.Members.GetByID(ctx, callerID(c))
	if err != nil {
		return fail(c, err, "load member failed")
	}
	return c.JSON(http.StatusOK, m)
}

// UpdateMe replaces the caller's password, name and phone number.
func (h *MemberHandler) UpdateMe(c echo.Context) error {
	var req updateMeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = utils.CleanText(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Password == "" || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password/name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	if err := h.Members.UpdateInfo(ctx, callerID(c), req.Password, req.Name, req.Phone); err != nil {
		return fail(c, err, "update member failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Ranking lists members by consumed time.
func (h *MemberHandler) Ranking(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	out, err := h.Members.Ranking(ctx)
	if err != nil {
		return fail(c, err, "load ranking failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"ranking": out})
}

// ListPlans lists the time plans on sale.
func (h *MemberHandler) ListPlans(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	out, err := h.Plans.List(ctx)
	if err != nil {
		return fail(c, err, "load plans failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"plans": out})
}

// Purchase credits the caller with the hours of plan :key.
func (h *MemberHandler) Purchase(c echo.Context) error {
	key := strings.TrimSpace(c.Param("key"))
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	remaining, err := h.Plans.Purchase(ctx, callerID(c), key, h.Cfg.TimeUnitsPerHour)
	if err != nil {
		return fail(c, err, "purchase failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"remaining_time": remaining})
}

// ListFoods lists the food catalog.
func (h *MemberHandler) ListFoods(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	out, err := h.Foods.List(ctx)
	if err != nil {
		return fail(c, err, "load foods failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"foods": out})
}
