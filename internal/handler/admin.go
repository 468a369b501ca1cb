package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/pcbang-kiosk/internal/config"
	"github.com/iliyamo/pcbang-kiosk/internal/middleware"
	"github.com/iliyamo/pcbang-kiosk/internal/model"
	"github.com/iliyamo/pcbang-kiosk/internal/repository"
	"github.com/iliyamo/pcbang-kiosk/internal/session"
	"github.com/iliyamo/pcbang-kiosk/internal/utils"
)

// AdminHandler bundles the repositories the counter staff manage.  Catalog
// writes purge the cached public listings.
type AdminHandler struct {
	Cfg         config.Config
	Members     *repository.MemberRepo
	Plans       *repository.PlanRepo
	Foods       *repository.FoodRepo
	Sessions    *session.Manager
	Redis       *redis.Client // optional
	CachePrefix string
}

type setTimeReq struct {
	Remaining *int `json:"remaining_time"`
}
type planReq struct {
	Amount int `json:"amount"`
	Hours  int `json:"hours"`
}
type foodReq struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Price    int    `json:"price"`
	ImageURL string `json:"image_url"`
}

func (h *AdminHandler) purge(ctx context.Context) {
	n, err := middleware.PurgeCache(ctx, h.Redis, h.CachePrefix)
	if err != nil {
		slog.Warn("cache purge failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		slog.Debug("cache purged", slog.Int64("keys", n))
	}
}

// ListMembers returns every member.
func (h *AdminHandler) ListMembers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	out, err := h.Members.List(ctx)
	if err != nil {
		return fail(c, err, "load members failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"members": out})
}

// DeleteMember removes member :id.  Their seats are freed.
func (h *AdminHandler) DeleteMember(c echo.Context) error {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	if err := h.Members.Delete(ctx, id); err != nil {
		return fail(c, err, "delete member failed")
	}
	h.Sessions.Forget(id)
	return c.NoContent(http.StatusNoContent)
}

// SetTime overwrites the remaining time of member :id.
func (h *AdminHandler) SetTime(c echo.Context) error {
	var req setTimeReq
	if err := c.Bind(&req); err != nil || req.Remaining == nil || *req.Remaining < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "remaining_time must be >= 0"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	if err := h.Members.SetRemainingTime(ctx, c.Param("id"), *req.Remaining); err != nil {
		return fail(c, err, "set time failed")
	}
	h.Sessions.Refresh(c.Param("id"), *req.Remaining)
	return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "remaining_time": *req.Remaining})
}

// PutPlan creates or replaces plan :key.
func (h *AdminHandler) PutPlan(c echo.Context) error {
	var req planReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	key := strings.TrimSpace(c.Param("key"))
	if key == "" || req.Amount < 0 || req.Hours <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount >= 0 and hours > 0 required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	p := model.Plan{Key: key, Amount: req.Amount, Hours: req.Hours}
	if err := h.Plans.Upsert(ctx, p); err != nil {
		return fail(c, err, "save plan failed")
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, p)
}

// DeletePlan removes plan :key.
func (h *AdminHandler) DeletePlan(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	if err := h.Plans.Delete(ctx, c.Param("key")); err != nil {
		return fail(c, err, "delete plan failed")
	}
	h.purge(ctx)
	return c.NoContent(http.StatusNoContent)
}

func (req foodReq) food() (model.Food, bool) {
	image, err := utils.CleanImageURL(req.ImageURL)
	f := model.Food{
		Code:     strings.TrimSpace(req.Code),
		Name:     utils.CleanText(req.Name),
		Price:    req.Price,
		ImageURL: image,
	}
	return f, err == nil && f.Code != "" && f.Name != "" && f.Price >= 0
}

// CreateFood adds a catalog entry.
func (h *AdminHandler) CreateFood(c echo.Context) error {
	var req foodReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	f, ok := req.food()
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code/name required, price >= 0, image_url http(s)"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	if err := h.Foods.Create(ctx, f); err != nil {
		return fail(c, err, "create food failed")
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, f)
}

// UpdateFood replaces name, price and image of food :code.
func (h *AdminHandler) UpdateFood(c echo.Context) error {
	var req foodReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Code = c.Param("code")
	f, ok := req.food()
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required, price >= 0, image_url http(s)"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	if err := h.Foods.Update(ctx, f); err != nil {
		return fail(c, err, "update food failed")
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, f)
}

// DeleteFood removes food :code.
func (h *AdminHandler) DeleteFood(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	if err := h.Foods.Delete(ctx, c.Param("code")); err != nil {
		return fail(c, err, "delete food failed")
	}
	h.purge(ctx)
	return c.NoContent(http.StatusNoContent)
}
