package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/AH316/sistahology-react-sub001/internal/config"
	"github.com/AH316/sistahology-react-sub001/internal/middleware"
	"github.com/AH316/sistahology-react-sub001/internal/repository"
	"github.com/AH316/sistahology-react-sub001/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

//middleware.AuthJWT が c.Set("user_id", int64) した値を取り出す

func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get("user_id")
	if v == nil {
		return 0, false
	}

	id, ok := v.(int64)
	if !ok {
		return 0, false
	}

	return id, true
}

// /admin/tokens の管理API
type AdminTokenHandler struct {
	cfg config.Config
	uc  *usecase.AdminTokenUsecase
}

// DI
func NewAdminTokenHandler(cfg config.Config, uc *usecase.AdminTokenUsecase) *AdminTokenHandler {
	return &AdminTokenHandler{cfg: cfg, uc: uc}
}

// /admin/tokens のリクエストボディ。
type issueTokenRequest struct {
	BoundEmail *string `json:"bound_email"`
	TTLHours   int     `json:"ttl_hours"`
}

func (h *AdminTokenHandler) RegisterRoutes(e *echo.Echo, userRepo repository.UserRepository) {
	// /admin 配下は全部「JWT必須 + token_version一致 + 管理者限定」
	admin := e.Group(
		"/admin",
		middleware.AuthJWT(h.cfg),
		middleware.TokenVersionGuard(userRepo),
		middleware.AdminRoleGuard(),
	)

	admin.POST("/tokens", h.Issue)
	admin.GET("/tokens", h.List)
}

// IssueはPOST /admin/tokens のハンドラ。
// 発行されたトークンIDがそのまま招待URLに載る。
func (h *AdminTokenHandler) Issue(c echo.Context) error {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req issueTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	if req.TTLHours < 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid ttl_hours"})
	}

	dto, err := h.uc.Issue(c.Request().Context(), actorID, usecase.IssueAdminTokenInput{
		BoundEmail: req.BoundEmail,
		TTL:        time.Duration(req.TTLHours) * time.Hour,
	})
	if err != nil {
		if _, ok := usecase.AsHTTPError(err); ok {
			return writeError(c, err)
		}
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid input"})
	}

	return c.JSON(http.StatusOK, dto)
}

// ListはGET /admin/tokens のハンドラ（読み取りのみ）。
func (h *AdminTokenHandler) List(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = n
	}

	offset := 0
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offset"})
		}
		offset = n
	}

	out, err := h.uc.List(c.Request().Context(), repository.AdminTokenFilter{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
