package model

import "time"

// トークン発行、権限付与など。
type AuditAction string

const (
	//管理者登録トークンを発行した操作。
	AuditActionIssueToken AuditAction = "ISSUE_TOKEN"
	//トークン消費で管理者権限を付与した操作。
	AuditActionGrantAdmin AuditAction = "GRANT_ADMIN"
	//トークン消費が拒否された（理由つき）。
	AuditActionGrantDenied AuditAction = "GRANT_DENIED"
)

// 何に対する操作か
type AuditResourceType string

const (
	//管理者登録トークンに対する操作。
	AuditResourceAdminToken AuditResourceType = "admin_token"

	//ユーザーに対する操作。
	AuditResourceUser AuditResourceType = "user"
)

// 監査ログ。
// 「誰が」「何を」「どの対象に」行ったかを残す。
// 権限付与の失敗もGRANT_DENIEDとしてここに残す。
type AuditLog struct {
	//IDは監査ログの主キー
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作したユーザーのID。未ログイン操作（署名付きURL経由など）は0。
	ActorUserID int64 `gorm:"not null;index" json:"actor_user_id"`

	//Actionは操作の種類（ISSUE_TOKEN / GRANT_ADMIN / GRANT_DENIED）。
	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	//対象の種類（admin_token / user）。
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	//対象のID（トークンIDなど文字列で保存）。
	ResourceID string `gorm:"type:varchar(64);not null;index" json:"resource_id"`

	//付随情報（拒否理由など）。
	Detail string `gorm:"type:text" json:"detail"`

	//作成時刻
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
