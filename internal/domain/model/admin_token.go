package model

import (
	"strings"
	"time"
)

// 管理者登録トークン。
// IDそのものがベアラー資格（URLで配布）なのでuuid v4で生成する。
type AdminToken struct {
	ID string `gorm:"type:uuid;primaryKey" json:"id"`

	//指定された場合、このemailのユーザーだけが消費できる（大文字小文字は無視）
	BoundEmail *string `gorm:"index" json:"bound_email,omitempty"`

	IssuedAt  time.Time `gorm:"not null" json:"issued_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`

	//consumed_at と consumed_by_user_id は必ず同時にセットする（片方だけは不変条件違反）
	ConsumedAt       *time.Time `gorm:"index" json:"consumed_at,omitempty"`
	ConsumedByUserID *int64     `json:"consumed_by_user_id,omitempty"`
}

func (AdminToken) TableName() string {
	return "admin_tokens"
}

// 期限切れかどうか
func (t *AdminToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// 消費済みかどうか
func (t *AdminToken) IsConsumed() bool {
	return t.ConsumedAt != nil
}

// bound_emailが候補emailと一致するか（未指定なら誰でもOK）
func (t *AdminToken) EmailMatches(candidate string) bool {
	if t.BoundEmail == nil {
		return true
	}
	return strings.EqualFold(*t.BoundEmail, candidate)
}
