// Package auth は認証フロー（トークン発行・検証、パスワード照合、
// ログイン/リフレッシュ/ログアウト）を提供する。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/userhub/internal/model"
)

// ErrInvalidToken は署名不正・期限切れ・クレーム不正のトークンに対して返される。
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims はアクセストークン・リフレッシュトークンの検証済みクレームを表す。
// 動的なクレームアクセスは行わず、閉じたレコード型としてデコードする。
type Claims struct {
	ID        string
	Name      string
	Email     string
	Role      model.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// jwtClaims は署名・パース用の内部型。
// ペイロードのフィールド名はクライアントと互換の id/name/email/role。
type jwtClaims struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService はアクセストークンとリフレッシュトークンの発行・検証を行う。
// アクセストークンとリフレッシュトークンは別々のシークレットで署名し、
// 一方の署名鍵の漏洩で他方のトークンクラスを偽造できないようにする。
// 状態は持たない。リフレッシュトークンのセッションストアへの永続化は呼び出し側の責務。
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// IssuePair はアクセストークンとリフレッシュトークンのペアを発行する。
func (s *TokenService) IssuePair(user *model.User) (access, refresh string, err error) {
	access, err = s.IssueAccess(user)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.sign(user, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// IssueAccess はアクセストークンのみを発行する。リフレッシュ時に単独で使用する。
func (s *TokenService) IssueAccess(user *model.User) (string, error) {
	return s.sign(user, s.accessSecret, s.accessTTL)
}

// VerifyAccess はアクセストークンの署名と有効期限を検証する。
// ストア参照は行わない（毎リクエストの検証をステートレスに保つ）。
func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	return s.verify(token, s.accessSecret)
}

// VerifyRefresh はリフレッシュトークンの署名と有効期限を検証する。
// 呼び出し側はさらにセッションストアの存在確認を行ってから信頼すること。
func (s *TokenService) VerifyRefresh(token string) (*Claims, error) {
	return s.verify(token, s.refreshSecret)
}

func (s *TokenService) sign(user *model.User, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now().UTC()

	cl := jwtClaims{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, cl)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) verify(token string, secret []byte) (*Claims, error) {
	var out jwtClaims
	tkn, err := jwt.ParseWithClaims(token, &out, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !tkn.Valid {
		return nil, ErrInvalidToken
	}

	// 不正な形のクレームは拒否する
	if out.UserID == "" || out.Email == "" || !model.ValidRole(out.Role) {
		return nil, ErrInvalidToken
	}
	if out.IssuedAt == nil || out.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	return &Claims{
		ID:        out.UserID,
		Name:      out.Name,
		Email:     out.Email,
		Role:      model.Role(out.Role),
		IssuedAt:  out.IssuedAt.Time,
		ExpiresAt: out.ExpiresAt.Time,
	}, nil
}
