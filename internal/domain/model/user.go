package model

import "time"

type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"column:password_hash;not null" json:"-"`
	//管理者フラグ。admin_tokenの消費でのみtrueになる（falseへ戻す操作は存在しない）
	IsAdmin      bool `gorm:"not null;default:false" json:"is_admin"`
	TokenVersion int  `gorm:"not null;default:0" json:"token_version"`
	IsActive     bool `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
