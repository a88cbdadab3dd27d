package validator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

// Test: サインアップ入力の検証
func TestValidateRegister(t *testing.T) {
	v := NewAuthValidator()
	ctx := context.Background()

	assert.NoError(t, v.ValidateRegister(ctx, "a@x.com", "pw123456"))

	//必須
	assert.ErrorIs(t, v.ValidateRegister(ctx, "", "pw123456"), ErrInvalidInput)
	assert.ErrorIs(t, v.ValidateRegister(ctx, "a@x.com", ""), ErrInvalidInput)

	//email形式
	assert.ErrorIs(t, v.ValidateRegister(ctx, "not-an-email", "pw123456"), ErrInvalidInput)
	assert.ErrorIs(t, v.ValidateRegister(ctx, "a@x", "pw123456"), ErrInvalidInput)

	//パスワード8文字未満
	assert.ErrorIs(t, v.ValidateRegister(ctx, "a@x.com", "short"), ErrInvalidInput)
}

// Test: ログイン入力の検証（パスワード長は見ない）
func TestValidateLogin(t *testing.T) {
	v := NewAuthValidator()
	ctx := context.Background()

	assert.NoError(t, v.ValidateLogin(ctx, "a@x.com", "pw"))
	assert.ErrorIs(t, v.ValidateLogin(ctx, "", "pw"), ErrInvalidInput)
	assert.ErrorIs(t, v.ValidateLogin(ctx, "broken@", "pw"), ErrInvalidInput)
}

// Test: トークン発行入力の検証
func TestValidateIssue(t *testing.T) {
	v := NewAdminTokenValidator()
	ctx := context.Background()

	//bound_emailもTTLも任意
	assert.NoError(t, v.ValidateIssue(ctx, nil, 0))
	assert.NoError(t, v.ValidateIssue(ctx, strPtr("a@x.com"), 48*time.Hour))

	//空白だけのbound_emailは未指定扱い
	assert.NoError(t, v.ValidateIssue(ctx, strPtr("   "), 0))

	//形式違反
	assert.ErrorIs(t, v.ValidateIssue(ctx, strPtr("bad email"), 0), ErrInvalidInput)

	//負のTTL
	assert.ErrorIs(t, v.ValidateIssue(ctx, nil, -time.Hour), ErrInvalidInput)
}

// Test: 強制ログアウトの対象ID
func TestValidateForceLogout(t *testing.T) {
	v := NewAuthValidator()
	ctx := context.Background()

	assert.NoError(t, v.ValidateForceLogout(ctx, 1))
	assert.ErrorIs(t, v.ValidateForceLogout(ctx, 0), ErrInvalidInput)
	assert.ErrorIs(t, v.ValidateForceLogout(ctx, -5), ErrInvalidInput)
}
