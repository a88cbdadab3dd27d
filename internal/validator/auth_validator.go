package validator

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/AH316/sistahology-react-sub001/internal/usecase"
)

var (
	// 入力が不正
	ErrInvalidInput = errors.New("invalid input")
)

type authValidator struct{}

// Usecaseは interface を依存注入
func NewAuthValidator() usecase.AuthValidator {
	return &authValidator{}
}

// サインアップの入力を検証
func (v *authValidator) ValidateRegister(ctx context.Context, email string, password string) error {
	email = strings.TrimSpace(email)

	// 必須チェック
	if email == "" || password == "" {
		return ErrInvalidInput
	}

	// email形式
	if !isEmailLike(email) {
		return ErrInvalidInput
	}

	// パスワード最低文字数（MVP: 8）
	if len(password) < 8 {
		return ErrInvalidInput
	}

	return nil
}

// ログインの入力を検証
func (v *authValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	email = strings.TrimSpace(email)

	// 必須チェック
	if email == "" || password == "" {
		return ErrInvalidInput
	}

	// email形式
	if !isEmailLike(email) {
		return ErrInvalidInput
	}

	return nil
}

// refresh 入力を検証
func (v *authValidator) ValidateRefresh(ctx context.Context, refreshToken string, userAgent string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return ErrInvalidInput
	}

	return nil
}

// logout 入力を検証
func (v *authValidator) ValidateLogout(ctx context.Context) error {
	return nil
}

// 強制ログアウトの入力を検証
func (v *authValidator) ValidateForceLogout(ctx context.Context, targetUserID int64) error {
	if targetUserID <= 0 {
		return ErrInvalidInput
	}
	return nil
}

type adminTokenValidator struct{}

// トークン発行の入力検証
func NewAdminTokenValidator() usecase.AdminTokenValidator {
	return &adminTokenValidator{}
}

// 発行入力を検証。bound_emailは任意だが、指定するなら形式チェックする。
func (v *adminTokenValidator) ValidateIssue(ctx context.Context, boundEmail *string, ttl time.Duration) error {
	if boundEmail != nil {
		trimmed := strings.TrimSpace(*boundEmail)
		if trimmed != "" && !isEmailLike(trimmed) {
			return ErrInvalidInput
		}
	}

	// ttlは0以下なら呼び出し側デフォルト（7日）を使うので負数だけ弾く
	if ttl < 0 {
		return ErrInvalidInput
	}

	return nil
}

// 簡易メール形式をチェック
func isEmailLike(s string) bool {
	re := regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	return re.MatchString(s)
}
