package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/AH316/sistahology-react-sub001/internal/domain/model"
	"github.com/AH316/sistahology-react-sub001/internal/repository"
	"github.com/AH316/sistahology-react-sub001/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// Mock: AdminTokenRepository
// =====================

type MockAdminTokenRepository struct {
	mock.Mock
}

func (m *MockAdminTokenRepository) Create(ctx context.Context, token *model.AdminToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockAdminTokenRepository) FindByID(ctx context.Context, tokenID string) (*model.AdminToken, error) {
	args := m.Called(ctx, tokenID)
	t, _ := args.Get(0).(*model.AdminToken)
	return t, args.Error(1)
}

func (m *MockAdminTokenRepository) List(ctx context.Context, filter repository.AdminTokenFilter) ([]model.AdminToken, error) {
	args := m.Called(ctx, filter)
	ts, _ := args.Get(0).([]model.AdminToken)
	return ts, args.Error(1)
}

func (m *MockAdminTokenRepository) MarkConsumed(ctx context.Context, tokenID string, userID int64, email string, now time.Time) (bool, error) {
	args := m.Called(ctx, tokenID, userID, email, now)
	return args.Bool(0), args.Error(1)
}

// =====================
// Mock: UserRepository
// =====================

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GrantAdmin(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) IncrementTokenVersion(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// =====================
// Mock: AuditLogRepository
// =====================

type MockAuditLogRepository struct {
	mock.Mock
}

func (m *MockAuditLogRepository) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditLogRepository) List(ctx context.Context, filter repository.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	ls, _ := args.Get(0).([]model.AuditLog)
	return ls, args.Error(1)
}

// =====================
// Fake: TransactionManager（mockリポジトリをそのままTxとして渡す）
// =====================

type fakeTxRepos struct {
	tokens repository.AdminTokenRepository
	users  repository.UserRepository
	audit  repository.AuditLogRepository
}

func (r *fakeTxRepos) AdminTokens() repository.AdminTokenRepository { return r.tokens }
func (r *fakeTxRepos) Users() repository.UserRepository             { return r.users }
func (r *fakeTxRepos) AuditLogs() repository.AuditLogRepository     { return r.audit }

type fakeTxManager struct {
	repos *fakeTxRepos
}

func (m *fakeTxManager) WithinTx(ctx context.Context, fn func(r repository.TxRepos) error) error {
	return fn(m.repos)
}

// =====================
// Fake: Clock / IDGenerator
// =====================

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time { return c.t }

type stubIDGen struct {
	id string
}

func (g *stubIDGen) NewID() string { return g.id }

type passValidator struct{}

func (passValidator) ValidateIssue(ctx context.Context, boundEmail *string, ttl time.Duration) error {
	return nil
}

func strPtr(s string) *string { return &s }

func newTokenUsecase(
	tokens repository.AdminTokenRepository,
	users repository.UserRepository,
	audit repository.AuditLogRepository,
	clock usecase.Clock,
	idGen usecase.IDGenerator,
) *usecase.AdminTokenUsecase {
	tx := &fakeTxManager{repos: &fakeTxRepos{tokens: tokens, users: users, audit: audit}}
	return usecase.NewAdminTokenUsecase(tokens, tx, audit, passValidator{}, idGen, clock, 0)
}

// =============================
// ① 発行
// =============================

// Test: デフォルトTTLは7日
func TestIssueDefaultTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{t: now}
	idGen := &stubIDGen{id: "3f2c7a1e-9d4b-4f6a-8c2d-5e7b9a0c1d2e"}

	tokenRepo := new(MockAdminTokenRepository)
	auditRepo := new(MockAuditLogRepository)

	tokenRepo.On("Create", mock.Anything, mock.MatchedBy(func(tok *model.AdminToken) bool {
		return tok.ID == idGen.id &&
			tok.BoundEmail == nil &&
			tok.IssuedAt.Equal(now) &&
			tok.ExpiresAt.Equal(now.Add(7*24*time.Hour)) &&
			tok.ConsumedAt == nil &&
			tok.ConsumedByUserID == nil
	})).Return(nil)
	auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	uc := newTokenUsecase(tokenRepo, new(MockUserRepository), auditRepo, clock, idGen)

	dto, err := uc.Issue(context.Background(), 1, usecase.IssueAdminTokenInput{})

	assert.NoError(t, err)
	assert.Equal(t, idGen.id, dto.ID)
	assert.Equal(t, "active", dto.Status)

	tokenRepo.AssertExpectations(t)
}

// Test: bound_emailは空白を落として保存、TTLは呼び出し側指定が優先
func TestIssueWithBoundEmailAndTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{t: now}
	idGen := &stubIDGen{id: "11111111-2222-4333-8444-555555555555"}

	tokenRepo := new(MockAdminTokenRepository)
	auditRepo := new(MockAuditLogRepository)

	tokenRepo.On("Create", mock.Anything, mock.MatchedBy(func(tok *model.AdminToken) bool {
		return tok.BoundEmail != nil &&
			*tok.BoundEmail == "a@x.com" &&
			tok.ExpiresAt.Equal(now.Add(48*time.Hour))
	})).Return(nil)
	auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	uc := newTokenUsecase(tokenRepo, new(MockUserRepository), auditRepo, clock, idGen)

	dto, err := uc.Issue(context.Background(), 1, usecase.IssueAdminTokenInput{
		BoundEmail: strPtr("  a@x.com  "),
		TTL:        48 * time.Hour,
	})

	assert.NoError(t, err)
	assert.Equal(t, "a@x.com", *dto.BoundEmail)
	tokenRepo.AssertExpectations(t)
}

// =============================
// ② validate（読み取りのみ・冪等）
// =============================

// Test: 未使用・期限内・バインドなしならN回呼んでも毎回valid
func TestValidateIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{t: now}

	token := &model.AdminToken{
		ID:        "tok-1",
		IssuedAt:  now.Add(-time.Hour),
		ExpiresAt: now.Add(time.Hour),
	}

	tokenRepo := new(MockAdminTokenRepository)
	tokenRepo.On("FindByID", mock.Anything, "tok-1").Return(token, nil).Times(5)

	uc := newTokenUsecase(tokenRepo, new(MockUserRepository), new(MockAuditLogRepository), clock, &stubIDGen{})

	for i := 0; i < 5; i++ {
		v, err := uc.Validate(context.Background(), "tok-1", "")
		assert.NoError(t, err)
		assert.Equal(t, usecase.GrantStatusValid, v.Status)
	}

	//読み取り専用：MarkConsumedは一度も呼ばれない
	tokenRepo.AssertNotCalled(t, "MarkConsumed", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	tokenRepo.AssertExpectations(t)
}

// Test: 存在しないトークンはnot_found
func TestValidateNotFound(t *testing.T) {
	clock := &fixedClock{t: time.Now()}

	tokenRepo := new(MockAdminTokenRepository)
	tokenRepo.On("FindByID", mock.Anything, "missing").Return(nil, repository.ErrAdminTokenNotFound)

	uc := newTokenUsecase(tokenRepo, new(MockUserRepository), new(MockAuditLogRepository), clock, &stubIDGen{})

	v, err := uc.Validate(context.Background(), "missing", "")
	assert.NoError(t, err)
	assert.Equal(t, usecase.GrantStatusNotFound, v.Status)
}

// Test: 判定順序。消費済みかつ期限切れならalready_usedが勝つ
func TestValidateOrderUsedBeforeExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{t: now}

	consumedAt := now.Add(-48 * time.Hour)
	userID := int64(9)
	token := &model.AdminToken{
		ID:               "tok-2",
		IssuedAt:         now.Add(-72 * time.Hour),
		ExpiresAt:        now.Add(-24 * time.Hour),
		ConsumedAt:       &consumedAt,
		ConsumedByUserID: &userID,
	}

	tokenRepo := new(MockAdminTokenRepository)
	tokenRepo.On("FindByID", mock.Anything, "tok-2").Return(token, nil)

	uc := newTokenUsecase(tokenRepo, new(MockUserRepository), new(MockAuditLogRepository), clock, &stubIDGen{})

	v, err := uc.Validate(context.Background(), "tok-2", "")
	assert.NoError(t, err)
	assert.Equal(t, usecase.GrantStatusAlreadyUsed, v.Status)
}

// Test: 期限の境界。now-1秒はexpired、now+1秒はvalid
func TestValidateExpiryBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{t: now}

	expired := &model.AdminToken{ID: "tok-exp", ExpiresAt: now.Add(-time.Second)}
	alive := &model.AdminToken{ID: "tok-ok", ExpiresAt: now.Add(time.Second)}

	tokenRepo := new(MockAdminTokenRepository)
	tokenRepo.On("FindByID", mock.Anything, "tok-exp").Return(expired, nil)
	tokenRepo.On("FindByID", mock.Anything, "tok-ok").Return(alive, nil)

	uc := newTokenUsecase(tokenRepo, new(MockUserRepository), new(MockAuditLogRepository), clock, &stubIDGen{})

	v1, err := uc.Validate(context.Background(), "tok-exp", "")
	assert.NoError(t, err)
	assert.Equal(t, usecase.GrantStatusExpired, v1.Status)

	v2, err := uc.Validate(context.Background(), "tok-ok", "")
	assert.NoError(t, err)
	assert.Equal(t, usecase.GrantStatusValid, v2.Status)
}

// Test: emailバインド。大文字小文字は無視、違うemailはemail_mismatch
func TestValidateEmailBinding(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{t: now}

	token := &model.AdminToken{
		ID:         "tok-3",
		BoundEmail: strPtr("a@x.com"),
		ExpiresAt:  now.Add(time.Hour),
	}

	tokenRepo := new(MockAdminTokenRepository)
	tokenRepo.On("FindByID", mock.Anything, "tok-3").Return(token, nil)

	uc := newTokenUsecase(tokenRepo, new(MockUserRepository), new(MockAuditLogRepository), clock, &stubIDGen{})

	//大文字小文字違いは一致扱い
	v, err := uc.Validate(context.Background(), "tok-3", "A@X.com")
	assert.NoError(t, err)
	assert.Equal(t, usecase.GrantStatusValid, v.Status)

	//別人はmismatch。bound_emailはUIプリフィル用に返る
	v, err = uc.Validate(context.Background(), "tok-3", "b@x.com")
	assert.NoError(t, err)
	assert.Equal(t, usecase.GrantStatusEmailMismatch, v.Status)
	assert.Equal(t, "a@x.com", *v.BoundEmail)

	//候補email未確定の間はmismatchにしない（プリフィルのため）
	v, err = uc.Validate(context.Background(), "tok-3", "")
	assert.NoError(t, err)
	assert.Equal(t, usecase.GrantStatusValid, v.Status)
}

// =============================
// ③ consume（Tx内の再検証＋付与）
// =============================

// Test: 正常系。消費と権限付与と監査ログが同じTxで行われる
func TestConsumeSuccess(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{t: now}

	tokenRepo := new(MockAdminTokenRepository)
	userRepo := new(MockUserRepository)
	auditRepo := new(MockAuditLogRepository)

	tokenRepo.On("MarkConsumed", mock.Anything, "tok-1", int64(7), "a@x.com", now).Return(true, nil)
	userRepo.On("GrantAdmin", mock.Anything, int64(7)).Return(nil)
	auditRepo.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionGrantAdmin && l.ResourceID == "tok-1" && l.ActorUserID == 7
	})).Return(nil)

	uc := newTokenUsecase(tokenRepo, userRepo, auditRepo, clock, &stubIDGen{})

	res, err := uc.Consume(context.Background(), "tok-1", 7, "a@x.com")

	assert.NoError(t, err)
	assert.True(t, res.Granted)

	tokenRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
	auditRepo.AssertExpectations(t)
}

// Test: 消費済みトークンはalready_used。付与は行われず、拒否は監査に残る
func TestConsumeAlreadyUsed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{t: now}

	consumedAt := now.Add(-time.Hour)
	other := int64(3)
	token := &model.AdminToken{
		ID:               "tok-1",
		ExpiresAt:        now.Add(time.Hour),
		ConsumedAt:       &consumedAt,
		ConsumedByUserID: &other,
	}

	tokenRepo := new(MockAdminTokenRepository)
	userRepo := new(MockUserRepository)
	auditRepo := new(MockAuditLogRepository)

	tokenRepo.On("MarkConsumed", mock.Anything, "tok-1", int64(7), "a@x.com", now).Return(false, nil)
	tokenRepo.On("FindByID", mock.Anything, "tok-1").Return(token, nil)
	auditRepo.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionGrantDenied && l.Detail == string(usecase.GrantStatusAlreadyUsed)
	})).Return(nil)

	uc := newTokenUsecase(tokenRepo, userRepo, auditRepo, clock, &stubIDGen{})

	res, err := uc.Consume(context.Background(), "tok-1", 7, "a@x.com")

	assert.NoError(t, err)
	assert.False(t, res.Granted)
	assert.Equal(t, usecase.GrantStatusAlreadyUsed, res.Reason)

	userRepo.AssertNotCalled(t, "GrantAdmin", mock.Anything, mock.Anything)
	auditRepo.AssertExpectations(t)
}

// Test: emailバインド違反はemail_mismatch
func TestConsumeEmailMismatch(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{t: now}

	token := &model.AdminToken{
		ID:         "tok-1",
		BoundEmail: strPtr("a@x.com"),
		ExpiresAt:  now.Add(time.Hour),
	}

	tokenRepo := new(MockAdminTokenRepository)
	auditRepo := new(MockAuditLogRepository)

	tokenRepo.On("MarkConsumed", mock.Anything, "tok-1", int64(7), "b@x.com", now).Return(false, nil)
	tokenRepo.On("FindByID", mock.Anything, "tok-1").Return(token, nil)
	auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	uc := newTokenUsecase(tokenRepo, new(MockUserRepository), auditRepo, clock, &stubIDGen{})

	res, err := uc.Consume(context.Background(), "tok-1", 7, "b@x.com")

	assert.NoError(t, err)
	assert.False(t, res.Granted)
	assert.Equal(t, usecase.GrantStatusEmailMismatch, res.Reason)
}

// Test: 存在しないトークンはnot_found
func TestConsumeNotFound(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{t: now}

	tokenRepo := new(MockAdminTokenRepository)
	auditRepo := new(MockAuditLogRepository)

	tokenRepo.On("MarkConsumed", mock.Anything, "missing", int64(7), "a@x.com", now).Return(false, nil)
	tokenRepo.On("FindByID", mock.Anything, "missing").Return(nil, repository.ErrAdminTokenNotFound)
	auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	uc := newTokenUsecase(tokenRepo, new(MockUserRepository), auditRepo, clock, &stubIDGen{})

	res, err := uc.Consume(context.Background(), "missing", 7, "a@x.com")

	assert.NoError(t, err)
	assert.False(t, res.Granted)
	assert.Equal(t, usecase.GrantStatusNotFound, res.Reason)
}

// Test: 付与が失敗したらTxごと失敗（500）。途中状態は残らない
func TestConsumeGrantFailureRollsBack(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{t: now}

	tokenRepo := new(MockAdminTokenRepository)
	userRepo := new(MockUserRepository)
	auditRepo := new(MockAuditLogRepository)

	tokenRepo.On("MarkConsumed", mock.Anything, "tok-1", int64(7), "a@x.com", now).Return(true, nil)
	userRepo.On("GrantAdmin", mock.Anything, int64(7)).Return(assert.AnError)

	uc := newTokenUsecase(tokenRepo, userRepo, auditRepo, clock, &stubIDGen{})

	res, err := uc.Consume(context.Background(), "tok-1", 7, "a@x.com")

	assert.Error(t, err)
	assert.False(t, res.Granted)

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 500, he.Status)
}
