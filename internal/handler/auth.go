package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pcbang-kiosk/internal/config"
	"github.com/iliyamo/pcbang-kiosk/internal/model"
	"github.com/iliyamo/pcbang-kiosk/internal/repository"
	"github.com/iliyamo/pcbang-kiosk/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg     config.Config
	Members *repository.MemberRepo
}

func NewAuthHandler(cfg config.Config, m *repository.MemberRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Members: m}
}

// ----- DTOs -----

type registerReq struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}
type loginReq struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type memberPart struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Remaining int    `json:"remaining_time"`
}
type authResp struct {
	Member memberPart `json:"member"`
	Access tokenPart  `json:"access"`
}

// Register creates a member.  The ID is case-sensitive and kept as typed
// apart from surrounding whitespace.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.ID = strings.TrimSpace(req.ID)
	req.Name = utils.CleanText(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.ID == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	if err := h.Members.Register(ctx, req.ID, req.Name, req.Password, req.Phone); err != nil {
		if errors.Is(err, repository.ErrIntegrity) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "id already exists"})
		}
		return fail(c, err, "register failed")
	}
	return c.JSON(http.StatusCreated, memberPart{ID: req.ID, Name: req.Name, Role: model.RoleMember})
}

// Login verifies the credentials and issues an access token carrying the
// member's role.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	ok, err := h.Members.VerifyCredentials(ctx, req.ID, req.Password)
	if err != nil {
		return fail(c, err, "login failed")
	}
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	m, err := h.Members.GetByID(ctx, req.ID)
	if err != nil {
		return fail(c, err, "load member failed")
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, m.ID, m.Role(), h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, authResp{
		Member: memberPart{ID: m.ID, Name: m.Username, Role: m.Role(), Remaining: m.RemainingTime},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// CheckID reports whether an ID is already taken, for the sign-up form.
func (h *AuthHandler) CheckID(c echo.Context) error {
	id := strings.TrimSpace(c.QueryParam("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.QueryTimeout)
	defer cancel()

	exists, err := h.Members.IdentifierExists(ctx, id)
	if err != nil {
		return fail(c, err, "check id failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"exists": exists})
}
