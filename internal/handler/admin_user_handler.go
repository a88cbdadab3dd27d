package handler

import (
	"net/http"
	"strconv"

	"github.com/AH316/sistahology-react-sub001/internal/config"
	"github.com/AH316/sistahology-react-sub001/internal/domain/model"
	"github.com/AH316/sistahology-react-sub001/internal/middleware"
	"github.com/AH316/sistahology-react-sub001/internal/repository"
	"github.com/AH316/sistahology-react-sub001/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminUserHandler struct {
	cfg       config.Config
	userRepo  repository.UserRepository
	auditRepo repository.AuditLogRepository
	uc        *usecase.AuthUsecase
}

func NewAdminUserHandler(
	cfg config.Config,
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	uc *usecase.AuthUsecase,
) *AdminUserHandler {
	return &AdminUserHandler{cfg: cfg, userRepo: userRepo, auditRepo: auditRepo, uc: uc}
}

func (h *AdminUserHandler) RegisterRoutes(e *echo.Echo) {
	// /admin 配下は全部「JWT必須 + token_version一致 + 管理者限定」
	admin := e.Group(
		"/admin",
		middleware.AuthJWT(h.cfg),
		middleware.TokenVersionGuard(h.userRepo),
		middleware.AdminRoleGuard(),
	)

	admin.POST("/users/:id/force-logout", h.ForceLogout)
	admin.GET("/audit-logs", h.ListAuditLogs)
}

func (h *AdminUserHandler) ForceLogout(c echo.Context) error {
	idStr := c.Param("id")
	userID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || userID <= 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
	}

	res, uerr := h.uc.ForceLogout(c.Request().Context(), userID)
	if uerr != nil {
		if uerr == usecase.ErrValidation {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}

	return c.JSON(http.StatusOK, res)
}

// ListAuditLogsはGET /admin/audit-logs のハンドラ。
// トークン発行・権限付与・付与拒否の履歴を追うための読み取りAPI。
func (h *AdminUserHandler) ListAuditLogs(c echo.Context) error {
	filter := repository.AuditLogFilter{Limit: 50}

	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		filter.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offset"})
		}
		filter.Offset = n
	}
	if v := c.QueryParam("action"); v != "" {
		action := model.AuditAction(v)
		filter.Action = &action
	}
	if v := c.QueryParam("token_id"); v != "" {
		filter.ResourceID = &v
	}

	logs, err := h.auditRepo.List(c.Request().Context(), filter)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}

	return c.JSON(http.StatusOK, logs)
}
