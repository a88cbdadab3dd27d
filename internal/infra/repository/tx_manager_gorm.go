package repository

import (
	"context"

	repo "github.com/AH316/sistahology-react-sub001/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	adminTokens repo.AdminTokenRepository
	users       repo.UserRepository
	auditLogs   repo.AuditLogRepository
}

func (r *txReposGorm) AdminTokens() repo.AdminTokenRepository { return r.adminTokens }
func (r *txReposGorm) Users() repo.UserRepository             { return r.users }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository     { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

// fnがerrorを返せば全部ロールバック、nilなら全部コミット。
func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			adminTokens: NewAdminTokenGormRepository(tx),
			users:       NewUserGormRepository(tx),
			auditLogs:   NewAuditLogGormRepository(tx),
		}
		return fn(r)
	})
}
