package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/userhub/internal/model"
	"github.com/hitoshi/userhub/internal/repository"
)

// SessionStore はリフレッシュトークンの失効管理に必要なインターフェース。
// session.Storeの部分集合として定義する。
type SessionStore interface {
	// Put はリフレッシュトークンとユーザーIDの対応をTTL付きで保存する。
	Put(ctx context.Context, refreshToken, userID string, ttl time.Duration) error
	// Get は対応するユーザーIDを返す。エントリ不在はエラーではなくok=falseで表す。
	Get(ctx context.Context, refreshToken string) (userID string, ok bool, err error)
	// Delete はエントリを削除する。不在のキーの削除はエラーにならない。
	Delete(ctx context.Context, refreshToken string) error
}

// LoginResult はログイン成功時の結果を表す。
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo   repository.UserRepository
	sessions   SessionStore
	tokens     *TokenService
	hasher     *PasswordHasher
	refreshTTL time.Duration
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessions SessionStore,
	tokens *TokenService,
	hasher *PasswordHasher,
	refreshTTL time.Duration,
) *Service {
	return &Service{
		userRepo:   userRepo,
		sessions:   sessions,
		tokens:     tokens,
		hasher:     hasher,
		refreshTTL: refreshTTL,
	}
}

// Login は認証情報を検証し、トークンペアを発行する。
// 発行したリフレッシュトークンはセッションストアに保存し、
// ログアウトによる失効を可能にする。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, model.NewValidationError("メールアドレスとパスワードは必須です。")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		// 壊れたダイジェストは認証失敗として扱う（詳細はログのみ）
		slog.Error("failed to verify password digest",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInvalidCredentialsError()
	}
	if !ok {
		return nil, model.NewInvalidCredentialsError()
	}

	access, refresh, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token pair: %w", err)
	}

	// セッションストアの書き込み失敗はログイン失敗として返す。
	// 保存されていないリフレッシュトークンは後で失効できないため。
	if err := s.sessions.Put(ctx, refresh, user.ID, s.refreshTTL); err != nil {
		return nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	}, nil
}

// Refresh はリフレッシュトークンを検証し、新しいアクセストークンを発行する。
// 署名・期限の検証に加えてセッションストアの存在確認を行う二重チェックにより、
// ログアウト済み（ストアから削除済み）のトークンを拒否する。
// リフレッシュトークン自体は再利用され、ローテーションしない。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", model.NewValidationError("リフレッシュトークンは必須です。")
	}

	if _, err := s.tokens.VerifyRefresh(refreshToken); err != nil {
		return "", model.NewInvalidRefreshTokenError()
	}

	// ストア不達（err != nil）は「失効済み」と混同してはならない。
	// 状態不明のため500として呼び出し元に伝播させる。
	userID, ok, err := s.sessions.Get(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if !ok {
		return "", model.NewInvalidRefreshTokenError()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", model.NewUserNotFoundError()
	}

	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return "", fmt.Errorf("failed to issue access token: %w", err)
	}

	return access, nil
}

// Logout はリフレッシュトークンをセッションストアから削除し、失効させる。
// 既に削除済みのトークンでも成功を返す（冪等）。
// アクセストークンは自然満了まで有効なまま残る。
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return model.NewValidationError("リフレッシュトークンは必須です。")
	}

	if err := s.sessions.Delete(ctx, refreshToken); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}

	slog.Info("user logged out")
	return nil
}
