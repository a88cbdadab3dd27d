package usecase

import (
	"context"
	"errors"
	"strings"
)

// Onboardingが認証側に求める約束
type AuthService interface {
	Register(ctx context.Context, req AuthRegisterRequest) (*AuthRegisterResponse, error)
	Login(ctx context.Context, req AuthLoginRequest, userAgent string, ip string) (*LoginResult, error)
	IssueAccessTokenFor(ctx context.Context, userID int64) (JwtAccessTokenDTO, error)
}

// Onboardingがトークン側に求める約束
type AdminTokenService interface {
	Validate(ctx context.Context, tokenID string, candidateEmail string) (TokenValidation, error)
	Consume(ctx context.Context, tokenID string, userID int64, email string) (GrantResult, error)
}

// UIバナーの状態。トークンの有無と使用可否だけを伝える。
type BannerDTO struct {
	Present    bool        `json:"present"`
	Status     GrantStatus `json:"status,omitempty"`
	BoundEmail *string     `json:"bound_email,omitempty"`
}

type OnboardingSignupInput struct {
	Email      string
	Password   string
	AdminToken string //任意。URLから来た管理者登録トークン
}

type OnboardingSignupResult struct {
	User *UserDTO `json:"user,omitempty"`

	//トークンを添えた結果。サインアップ成功とは独立。
	Grant *GrantResult `json:"admin_grant,omitempty"`

	//email既存＋トークンあり：エラーではなくログインへ誘導する。
	//トークンは失わずそのまま次のログインリクエストに載せ直してもらう。
	SwitchToLogin bool   `json:"switch_to_login,omitempty"`
	AdminToken    string `json:"admin_token,omitempty"`
	Message       string `json:"message,omitempty"`
}

type OnboardingLoginInput struct {
	Email      string
	Password   string
	AdminToken string //任意
	UserAgent  string
	IP         string
}

type OnboardingLoginResult struct {
	Body              AuthLoginResponse `json:"body"`
	Grant             *GrantResult      `json:"admin_grant,omitempty"`
	RefreshTokenPlain string            `json:"-"`
	CsrfTokenPlain    string            `json:"-"`
}

// サインアップ経路とログイン経路のどちらでトークンを消費するかを捌く調整役。
// トークンが無効でも通常のサインアップ/ログインは一切ブロックしない。
type OnboardingUsecase struct {
	auth   AuthService
	tokens AdminTokenService
}

// DI
func NewOnboardingUsecase(auth AuthService, tokens AdminTokenService) *OnboardingUsecase {
	return &OnboardingUsecase{auth: auth, tokens: tokens}
}

// Bannerはトークン付きURLで来たUIの表示状態を返す。読み取りのみ。
func (u *OnboardingUsecase) Banner(ctx context.Context, tokenID string, candidateEmail string) (BannerDTO, error) {
	if strings.TrimSpace(tokenID) == "" {
		return BannerDTO{Present: false}, nil
	}

	v, err := u.tokens.Validate(ctx, tokenID, candidateEmail)
	if err != nil {
		return BannerDTO{}, err
	}

	return BannerDTO{
		Present:    true,
		Status:     v.Status,
		BoundEmail: v.BoundEmail,
	}, nil
}

// Signupはサインアップ経路。
// email既存＋トークンありのときはエラー扱いにせず、トークンを持ったまま
// ログイン経路へ切り替えてもらう（経路切替でトークンを失わない・二重消費しない）。
func (u *OnboardingUsecase) Signup(ctx context.Context, in OnboardingSignupInput) (*OnboardingSignupResult, error) {
	out, err := u.auth.Register(ctx, AuthRegisterRequest{
		Email:    in.Email,
		Password: in.Password,
	})

	if err != nil {
		//既存アカウント＋トークンあり→ログインへ（非エラー）
		if errors.Is(err, ErrConflict) && strings.TrimSpace(in.AdminToken) != "" {
			return &OnboardingSignupResult{
				SwitchToLogin: true,
				AdminToken:    in.AdminToken,
				Message:       "account already exists. sign in to activate admin access",
			}, nil
		}
		return nil, err
	}

	res := &OnboardingSignupResult{User: &out.User}

	//トークンがあれば、認証が確定したこのタイミングで一度だけ消費する
	if strings.TrimSpace(in.AdminToken) != "" {
		res.Grant = u.consume(ctx, in.AdminToken, out.User.ID, out.User.Email)
		if res.Grant.Granted {
			res.User.IsAdmin = true
		}
	}

	return res, nil
}

// Loginはログイン経路。認証成功後に一度だけ消費する。
// granted=trueならaccess tokenを作り直してadmクレームを最新化する
// （セッションを作り直さずに管理者UIを出せるようにする）。
func (u *OnboardingUsecase) Login(ctx context.Context, in OnboardingLoginInput) (*OnboardingLoginResult, error) {
	lr, err := u.auth.Login(ctx, AuthLoginRequest{
		Email:    in.Email,
		Password: in.Password,
	}, in.UserAgent, in.IP)
	if err != nil {
		//認証自体の失敗はそのまま返す（トークンは消費されない）
		return nil, err
	}

	res := &OnboardingLoginResult{
		Body:              lr.Body,
		RefreshTokenPlain: lr.RefreshTokenPlain,
		CsrfTokenPlain:    lr.CsrfTokenPlain,
	}

	if strings.TrimSpace(in.AdminToken) == "" {
		return res, nil
	}

	res.Grant = u.consume(ctx, in.AdminToken, lr.Body.User.ID, lr.Body.User.Email)

	if res.Grant.Granted {
		res.Body.User.IsAdmin = true

		//発行済みのaccess tokenはadm=falseなので作り直す。
		//失敗してもログインと付与は成立済みなので握りつぶさず古いtokenのまま返す。
		if tok, terr := u.auth.IssueAccessTokenFor(ctx, lr.Body.User.ID); terr == nil {
			res.Body.Token = tok
		}
	}

	return res, nil
}

// consumeは拒否もインフラ障害もデータに畳み込む。
// 認証の成功を権限付与の失敗で壊さないための境界。
func (u *OnboardingUsecase) consume(ctx context.Context, tokenID string, userID int64, email string) *GrantResult {
	grant, err := u.tokens.Consume(ctx, tokenID, userID, email)
	if err != nil {
		//インフラ障害だけはリトライ可能な理由として返す
		return &GrantResult{Granted: false, Reason: GrantStatusStorageFailure}
	}
	return &grant
}
