package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	AdminTokens() AdminTokenRepository
	Users() UserRepository
	AuditLogs() AuditLogRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// トークン消費と権限付与は必ず同じTxで行う。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
