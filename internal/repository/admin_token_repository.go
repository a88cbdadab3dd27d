package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AH316/sistahology-react-sub001/internal/domain/model"
)

var ErrAdminTokenNotFound = errors.New("admin token not found")

// 一覧の絞り込み条件（管理画面用）。
type AdminTokenFilter struct {
	Limit  int
	Offset int
}

// 管理者登録トークンの保存・取得・消費の約束。
type AdminTokenRepository interface {
	//新規トークンを保存（consumed_atはNULLで入る）
	Create(ctx context.Context, token *model.AdminToken) error

	//IDで1件取得。見つからなければErrAdminTokenNotFound。
	FindByID(ctx context.Context, tokenID string) (*model.AdminToken, error)

	//発行済みトークンを新しい順に一覧（管理画面の表示用・読み取りのみ）
	List(ctx context.Context, filter AdminTokenFilter) ([]model.AdminToken, error)

	// 未消費→消費済みへの一方向遷移。条件付きUPDATEで実装し、
	// 「consumed_at IS NULL かつ 期限内 かつ bound_email一致」の行だけを更新する。
	// 条件に合う行が無ければ(false, nil)を返す（理由の分類は呼び出し側が再読込で行う）。
	MarkConsumed(ctx context.Context, tokenID string, userID int64, email string, now time.Time) (bool, error)
}
