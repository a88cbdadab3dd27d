package server

import (
	"github.com/AH316/sistahology-react-sub001/internal/config"
	"github.com/AH316/sistahology-react-sub001/internal/handler"
	"github.com/AH316/sistahology-react-sub001/internal/repository"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(
	e *echo.Echo,
	cfg config.Config,
	userRepo repository.UserRepository,
	authH *handler.AuthHandler,
	tokenH *handler.AdminTokenHandler,
	adminUserH *handler.AdminUserHandler,
) {
	authH.RegisterRoutes(e, cfg, userRepo)
	tokenH.RegisterRoutes(e, userRepo)
	adminUserH.RegisterRoutes(e)
}
