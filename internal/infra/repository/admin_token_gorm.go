package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AH316/sistahology-react-sub001/internal/domain/model"
	domainrepo "github.com/AH316/sistahology-react-sub001/internal/repository"

	"gorm.io/gorm"
)

type adminTokenGormRepository struct {
	db *gorm.DB //DB接続（GORM）
}

// GORM実装
func NewAdminTokenGormRepository(db *gorm.DB) domainrepo.AdminTokenRepository {
	return &adminTokenGormRepository{db: db}
}

// トークンを保存。
func (r *adminTokenGormRepository) Create(ctx context.Context, token *model.AdminToken) error {
	//タイムアウトやキャンセルをDB処理に伝える
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return err
	}
	return nil
}

// IDで1件検索します。
func (r *adminTokenGormRepository) FindByID(ctx context.Context, tokenID string) (*model.AdminToken, error) {
	var token model.AdminToken

	err := r.db.WithContext(ctx).
		Where("id = ?", tokenID).
		First(&token).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainrepo.ErrAdminTokenNotFound
		}
		return nil, err
	}

	return &token, nil
}

// 発行済みトークンを新しい順に一覧します（管理画面表示用）。
func (r *adminTokenGormRepository) List(ctx context.Context, filter domainrepo.AdminTokenFilter) ([]model.AdminToken, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var tokens []model.AdminToken
	err := r.db.WithContext(ctx).
		Order("issued_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tokens).Error

	if err != nil {
		return nil, err
	}

	return tokens, nil
}

// consumed_at / consumed_by_user_id をセットして「消費済み」にします。
// WHERE句に未消費・期限内・email一致をすべて入れた条件付きUPDATEなので、
// 同じトークンに対して同時に呼ばれても更新できるのは1回だけ。
func (r *adminTokenGormRepository) MarkConsumed(ctx context.Context, tokenID string, userID int64, email string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.AdminToken{}).
		Where("id = ? AND consumed_at IS NULL AND expires_at > ? AND (bound_email IS NULL OR lower(bound_email) = lower(?))",
			tokenID, now, email).
		Updates(map[string]interface{}{
			"consumed_at":         &now,
			"consumed_by_user_id": userID,
		})

	if result.Error != nil {
		return false, result.Error
	}

	// 更新件数が0なら「消費済み/期限切れ/不一致/存在しない」のどれか
	if result.RowsAffected == 0 {
		return false, nil
	}

	return true, nil
}
