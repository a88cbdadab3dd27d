package server

import (
	"github.com/AH316/sistahology-react-sub001/internal/config"
	"github.com/AH316/sistahology-react-sub001/internal/handler"
	"github.com/AH316/sistahology-react-sub001/internal/repository"

	"github.com/labstack/echo/v4"
)

func Start(
	addr string,
	cfg config.Config,
	userRepo repository.UserRepository,
	authH *handler.AuthHandler,
	tokenH *handler.AdminTokenHandler,
	adminUserH *handler.AdminUserHandler,
) error {
	e := echo.New()
	e.HideBanner = true

	RegisterRoutes(e, cfg, userRepo, authH, tokenH, adminUserH)

	return e.Start(addr)
}
