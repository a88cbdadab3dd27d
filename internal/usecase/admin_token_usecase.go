package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AH316/sistahology-react-sub001/internal/domain/model"
	repo "github.com/AH316/sistahology-react-sub001/internal/repository"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

// トークン消費の結果分類。
// エラーではなくデータとして返す（呼び出し側が文言を決める）。
type GrantStatus string

const (
	GrantStatusValid         GrantStatus = "valid"
	GrantStatusNotFound      GrantStatus = "not_found"
	GrantStatusAlreadyUsed   GrantStatus = "already_used"
	GrantStatusExpired       GrantStatus = "expired"
	GrantStatusEmailMismatch GrantStatus = "email_mismatch"

	//インフラ障害。これだけは呼び出し側のリトライ対象。
	GrantStatusStorageFailure GrantStatus = "storage_failure"
)

// 発行の入力
type IssueAdminTokenInput struct {
	BoundEmail *string
	TTL        time.Duration
}

// 管理画面表示用のDTO
type AdminTokenDTO struct {
	ID               string     `json:"id"`
	BoundEmail       *string    `json:"bound_email,omitempty"`
	IssuedAt         time.Time  `json:"issued_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	ConsumedAt       *time.Time `json:"consumed_at,omitempty"`
	ConsumedByUserID *int64     `json:"consumed_by_user_id,omitempty"`
	Status           string     `json:"status"` // active / used / expired
}

// validateの結果。UIバナー用で、読み取りのみ。
type TokenValidation struct {
	Status     GrantStatus `json:"status"`
	BoundEmail *string     `json:"bound_email,omitempty"`
}

// consumeの結果。granted=trueは該当トークンで一度しか起きない。
type GrantResult struct {
	Granted bool        `json:"granted"`
	Reason  GrantStatus `json:"reason,omitempty"`
}

// 発行入力の検証を寄せる約束
type AdminTokenValidator interface {
	ValidateIssue(ctx context.Context, boundEmail *string, ttl time.Duration) error
}

type AdminTokenUsecase struct {
	tokens     repo.AdminTokenRepository
	tx         repo.TransactionManager
	audit      repo.AuditLogRepository
	validator  AdminTokenValidator
	idGen      IDGenerator
	clock      Clock
	defaultTTL time.Duration
}

// DI
func NewAdminTokenUsecase(
	tokens repo.AdminTokenRepository,
	tx repo.TransactionManager,
	audit repo.AuditLogRepository,
	validator AdminTokenValidator,
	idGen IDGenerator,
	clock Clock,
	defaultTTL time.Duration,
) *AdminTokenUsecase {
	if defaultTTL <= 0 {
		defaultTTL = 7 * 24 * time.Hour
	}
	return &AdminTokenUsecase{
		tokens:     tokens,
		tx:         tx,
		audit:      audit,
		validator:  validator,
		idGen:      idGen,
		clock:      clock,
		defaultTTL: defaultTTL,
	}
}

// Issueは管理者登録トークンを発行する。
// 発行時点では権限の変化は一切ない（URLで配って消費されて初めて意味を持つ）。
func (u *AdminTokenUsecase) Issue(ctx context.Context, actorUserID int64, in IssueAdminTokenInput) (*AdminTokenDTO, error) {
	//入力検証（validatorに寄せる）
	if err := u.validator.ValidateIssue(ctx, in.BoundEmail, in.TTL); err != nil {
		return nil, err
	}

	ttl := in.TTL
	if ttl <= 0 {
		ttl = u.defaultTTL
	}

	//bound_emailは前後の空白だけ落として保存（比較時はlowerで行う）
	var bound *string
	if in.BoundEmail != nil {
		trimmed := strings.TrimSpace(*in.BoundEmail)
		if trimmed != "" {
			bound = &trimmed
		}
	}

	now := u.clock.Now()

	//uuid v4は122bitのランダム値なので推測・列挙はできない
	token := &model.AdminToken{
		ID:         u.idGen.NewID(),
		BoundEmail: bound,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}

	if err := u.tokens.Create(ctx, token); err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//発行の監査ログ（失敗しても発行自体は成立させる）
	_ = u.audit.Create(ctx, model.AuditLog{
		ActorUserID:  actorUserID,
		Action:       model.AuditActionIssueToken,
		ResourceType: model.AuditResourceAdminToken,
		ResourceID:   token.ID,
		CreatedAt:    now,
	})

	dto := toAdminTokenDTO(token, now)
	return &dto, nil
}

// Validateはトークンの使用可否を読み取りだけで判定する。
// UIバナー用なので何度呼んでも状態は変わらない。
// 本番の判定はConsumeのTx内でもう一度行う（check/useの隙間を塞ぐ）。
func (u *AdminTokenUsecase) Validate(ctx context.Context, tokenID string, candidateEmail string) (TokenValidation, error) {
	if strings.TrimSpace(tokenID) == "" {
		return TokenValidation{Status: GrantStatusNotFound}, nil
	}

	token, err := u.tokens.FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repo.ErrAdminTokenNotFound) {
			return TokenValidation{Status: GrantStatusNotFound}, nil
		}
		return TokenValidation{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	now := u.clock.Now()

	//判定順序は「より具体的な案内」を優先：NotFound→AlreadyUsed→Expired→EmailMismatch
	if token.IsConsumed() {
		return TokenValidation{Status: GrantStatusAlreadyUsed, BoundEmail: token.BoundEmail}, nil
	}
	if token.IsExpired(now) {
		return TokenValidation{Status: GrantStatusExpired, BoundEmail: token.BoundEmail}, nil
	}

	//candidateEmailが未確定（空）の間はミスマッチ扱いにしない。
	//bound_emailはUIのプリフィル用に返す。
	if token.BoundEmail != nil && candidateEmail != "" && !token.EmailMatches(candidateEmail) {
		return TokenValidation{Status: GrantStatusEmailMismatch, BoundEmail: token.BoundEmail}, nil
	}

	return TokenValidation{Status: GrantStatusValid, BoundEmail: token.BoundEmail}, nil
}

// Consumeはトークンを消費して管理者権限を付与する。ここが本体。
//
// 消費（consumed_at/consumed_by_user_id）と権限付与（is_admin=true）は
// 1つのDBトランザクションで行い、途中状態は外から見えない。
// 同じトークンに複数の呼び出しが競合しても、条件付きUPDATEが成立するのは
// 1トランザクションだけで、負けた側はalready_usedを受け取る。
func (u *AdminTokenUsecase) Consume(ctx context.Context, tokenID string, userID int64, email string) (GrantResult, error) {
	if strings.TrimSpace(tokenID) == "" {
		return GrantResult{Granted: false, Reason: GrantStatusNotFound}, nil
	}
	if userID <= 0 {
		return GrantResult{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var result GrantResult

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := u.clock.Now()

		//Tx内の再検証と消費を1つの条件付きUPDATEで行う
		ok, err := r.AdminTokens().MarkConsumed(ctx, tokenID, userID, email, now)
		if err != nil {
			return err
		}

		if !ok {
			//更新0件。理由を分類するために読み直す（同Tx内）
			token, ferr := r.AdminTokens().FindByID(ctx, tokenID)
			if errors.Is(ferr, repo.ErrAdminTokenNotFound) {
				result = GrantResult{Granted: false, Reason: GrantStatusNotFound}
				return nil
			}
			if ferr != nil {
				return ferr
			}

			switch {
			case token.IsConsumed():
				result = GrantResult{Granted: false, Reason: GrantStatusAlreadyUsed}
			case token.IsExpired(now):
				result = GrantResult{Granted: false, Reason: GrantStatusExpired}
			case !token.EmailMatches(email):
				result = GrantResult{Granted: false, Reason: GrantStatusEmailMismatch}
			default:
				//UPDATEが0件なのに読み直すと使用可能に見える＝勝者のTxが先に確定した
				result = GrantResult{Granted: false, Reason: GrantStatusAlreadyUsed}
			}
			return nil
		}

		//同じTxで権限付与。失敗したら消費ごとロールバック。
		if err := r.Users().GrantAdmin(ctx, userID); err != nil {
			return err
		}

		//付与の監査ログも同じTxに入れる
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  userID,
			Action:       model.AuditActionGrantAdmin,
			ResourceType: model.AuditResourceAdminToken,
			ResourceID:   tokenID,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		result = GrantResult{Granted: true}
		return nil
	})

	if err != nil {
		//Tx失敗は途中状態なしで全部ロールバック済み。リトライ可能として返す。
		return GrantResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//拒否はTxの外で監査に残す（失敗しても結果は変えない）
	if !result.Granted {
		_ = u.audit.Create(ctx, model.AuditLog{
			ActorUserID:  userID,
			Action:       model.AuditActionGrantDenied,
			ResourceType: model.AuditResourceAdminToken,
			ResourceID:   tokenID,
			Detail:       string(result.Reason),
			CreatedAt:    u.clock.Now(),
		})
	}

	return result, nil
}

// Listは発行済みトークンの一覧（管理画面用・読み取りのみ）。
func (u *AdminTokenUsecase) List(ctx context.Context, filter repo.AdminTokenFilter) ([]AdminTokenDTO, error) {
	tokens, err := u.tokens.List(ctx, filter)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	now := u.clock.Now()
	out := make([]AdminTokenDTO, 0, len(tokens))
	for i := range tokens {
		out = append(out, toAdminTokenDTO(&tokens[i], now))
	}
	return out, nil
}

func toAdminTokenDTO(t *model.AdminToken, now time.Time) AdminTokenDTO {
	status := "active"
	switch {
	case t.IsConsumed():
		status = "used"
	case t.IsExpired(now):
		status = "expired"
	}

	return AdminTokenDTO{
		ID:               t.ID,
		BoundEmail:       t.BoundEmail,
		IssuedAt:         t.IssuedAt,
		ExpiresAt:        t.ExpiresAt,
		ConsumedAt:       t.ConsumedAt,
		ConsumedByUserID: t.ConsumedByUserID,
		Status:           status,
	}
}
