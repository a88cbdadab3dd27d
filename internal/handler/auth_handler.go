package handler

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/AH316/sistahology-react-sub001/internal/config"
	"github.com/AH316/sistahology-react-sub001/internal/middleware"
	"github.com/AH316/sistahology-react-sub001/internal/repository"
	"github.com/AH316/sistahology-react-sub001/internal/usecase"

	"github.com/labstack/echo/v4"
)

// handlerがOnboardingに求める約束
type OnboardingService interface {
	Banner(ctx context.Context, tokenID string, candidateEmail string) (usecase.BannerDTO, error)
	Signup(ctx context.Context, in usecase.OnboardingSignupInput) (*usecase.OnboardingSignupResult, error)
	Login(ctx context.Context, in usecase.OnboardingLoginInput) (*usecase.OnboardingLoginResult, error)
}

// handlerがセッション系に求める約束
type SessionService interface {
	Refresh(ctx context.Context, refreshTokenPlain string, userAgent string, ip string) (*usecase.RefreshResult, error)
	Logout(ctx context.Context, refreshTokenPlain string) (*usecase.SuccessResponse, error)
	Me(ctx context.Context, userID int64) (*usecase.UserDTO, error)
}

type AuthHandler struct {
	onboarding   OnboardingService
	session      SessionService
	refreshTTL   time.Duration // refresh/csrf cookie の有効期限
	cookieSecure bool
}

// DIコンストラクタ
func NewAuthHandler(
	onboarding OnboardingService,
	session SessionService,
	refreshTTL time.Duration,
) *AuthHandler {
	return &AuthHandler{
		onboarding:   onboarding,
		session:      session,
		refreshTTL:   refreshTTL,
		cookieSecure: envBool("COOKIE_SECURE", true),
	}
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True":
		return true
	case "0", "false", "FALSE", "False":
		return false
	default:
		return def
	}
}

// /auth/register のリクエストボディ。
// admin_tokenは任意（招待URLから来たときだけ付く）。
type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	AdminToken string `json:"admin_token"`
}

// /auth/login のリクエストボディ。
type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	AdminToken string `json:"admin_token"`
}

func (h *AuthHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	e.POST("/auth/register", h.Register)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/refresh", h.Refresh)
	e.POST("/auth/logout", h.Logout)

	//UIバナー用。認証不要。
	e.GET("/auth/token-status", h.TokenStatus)

	//ログイン済みの自分の情報（権限再取得にも使う）
	me := e.Group("/auth/me")
	me.Use(middleware.AuthJWT(cfg))
	me.Use(middleware.TokenVersionGuard(userRepo))
	me.GET("", h.Me)
}

// RegisterはPOST /auth/registerのハンドラ。
// トークンはbodyのadmin_tokenか、URLの?token=で受ける。
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}

	if req.AdminToken == "" {
		req.AdminToken = c.QueryParam("token")
	}

	res, err := h.onboarding.Signup(c.Request().Context(), usecase.OnboardingSignupInput{
		Email:      req.Email,
		Password:   req.Password,
		AdminToken: req.AdminToken,
	})
	if err != nil {
		switch {
		case err == usecase.ErrValidation:
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
		case err == usecase.ErrConflict:
			return c.JSON(http.StatusConflict, ErrorResponse{Error: "CONFLICT"})
		default:
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL"})
		}
	}

	//既存アカウント＋トークンあり：エラーではなく案内としてログインへ。
	//admin_tokenをそのまま返して次のログインリクエストに載せ直してもらう。
	if res.SwitchToLogin {
		return c.JSON(http.StatusConflict, res)
	}

	return c.JSON(http.StatusOK, res)
}

// LoginはPOST /auth/login のハンドラ。
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}

	if req.AdminToken == "" {
		req.AdminToken = c.QueryParam("token")
	}

	// User-Agentを取得（refreshtokenに紐付ける）
	userAgent := c.Request().Header.Get("User-Agent")

	res, err := h.onboarding.Login(c.Request().Context(), usecase.OnboardingLoginInput{
		Email:      req.Email,
		Password:   req.Password,
		AdminToken: req.AdminToken,
		UserAgent:  userAgent,
		IP:         c.RealIP(),
	})
	if err != nil {
		switch {
		case err == usecase.ErrValidation:
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
		case err == usecase.ErrUnauthorized:
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "UNAUTHORIZED"})
		case err == usecase.ErrForbidden:
			return c.JSON(http.StatusForbidden, ErrorResponse{Error: "FORBIDDEN"})
		default:
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL"})
		}
	}

	// refresh cookie
	h.setRefreshCookie(c, res.RefreshTokenPlain)

	//csrf cookie
	h.setCsrfCookie(c, res.CsrfTokenPlain)

	//JSONレスポンス（user + token + admin_grant）
	return c.JSON(http.StatusOK, res)
}

// RefreshはPOST /auth/refresh のハンドラ。
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie("refresh")
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "UNAUTHORIZED"})
	}

	userAgent := c.Request().Header.Get("User-Agent")

	res, uerr := h.session.Refresh(c.Request().Context(), cookie.Value, userAgent, c.RealIP())
	if uerr != nil {
		switch {
		case uerr == usecase.ErrSecurityIncident:
			h.clearAuthCookies(c)
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "SECURITY_INCIDENT"})
		case uerr == usecase.ErrUnauthorized:
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "UNAUTHORIZED"})
		case uerr == usecase.ErrForbidden:
			return c.JSON(http.StatusForbidden, ErrorResponse{Error: "FORBIDDEN"})
		default:
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL"})
		}
	}

	h.setRefreshCookie(c, res.RefreshTokenPlain)
	h.setCsrfCookie(c, res.CsrfTokenPlain)

	return c.JSON(http.StatusOK, res.Body)
}

// LogoutはPOST /auth/logout のハンドラ。
func (h *AuthHandler) Logout(c echo.Context) error {
	cookie, err := c.Cookie("refresh")
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "UNAUTHORIZED"})
	}

	res, uerr := h.session.Logout(c.Request().Context(), cookie.Value)
	if uerr != nil {
		if uerr == usecase.ErrUnauthorized {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "UNAUTHORIZED"})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL"})
	}

	h.clearAuthCookies(c)

	return c.JSON(http.StatusOK, res)
}

// MeはGET /auth/me のハンドラ。
// 付与直後のフロントはこれで最新のis_adminを取り直せる。
func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "UNAUTHORIZED"})
	}

	dto, err := h.session.Me(c.Request().Context(), userID)
	if err != nil {
		if err == usecase.ErrForbidden {
			return c.JSON(http.StatusForbidden, ErrorResponse{Error: "FORBIDDEN"})
		}
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "UNAUTHORIZED"})
	}

	return c.JSON(http.StatusOK, dto)
}

// TokenStatusはGET /auth/token-status のハンドラ。
// UIバナー表示用の読み取り専用チェック。何度呼んでも状態は変わらない。
func (h *AuthHandler) TokenStatus(c echo.Context) error {
	tokenID := c.QueryParam("token")
	email := c.QueryParam("email")

	banner, err := h.onboarding.Banner(c.Request().Context(), tokenID, email)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, banner)
}

// refreshtoken をCookieにセット。
func (h *AuthHandler) setRefreshCookie(c echo.Context, plainRefresh string) {
	exp := time.Now().Add(h.refreshTTL)

	cookie := &http.Cookie{
		Name:     "refresh",
		Value:    plainRefresh,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	}
	c.SetCookie(cookie)
}

// csrftokenをCookieにセット
func (h *AuthHandler) setCsrfCookie(c echo.Context, csrfToken string) {
	exp := time.Now().Add(h.refreshTTL)

	cookie := &http.Cookie{
		Name:     "csrf_token",
		Value:    csrfToken,
		Path:     "/",
		HttpOnly: false,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	}
	c.SetCookie(cookie)
}

// 両方のCookieを失効させる
func (h *AuthHandler) clearAuthCookies(c echo.Context) {
	for _, name := range []string{"refresh", "csrf_token"} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: name == "refresh",
			Secure:   h.cookieSecure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}
