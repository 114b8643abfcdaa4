package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/userhub/internal/auth"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
}

// LoginRecorder はログイン試行結果の記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type LoginRecorder interface {
	RecordLogin(success bool)
}

// noopLoginRecorder は記録を行わないデフォルト実装。
type noopLoginRecorder struct{}

func (noopLoginRecorder) RecordLogin(bool) {}

// AuthHandler はJWT認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	recorder LoginRecorder
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{
		service:  service,
		recorder: noopLoginRecorder{},
	}
}

// WithLoginRecorder はログイン試行の記録先を設定したAuthHandlerを返す。
func (h *AuthHandler) WithLoginRecorder(recorder LoginRecorder) *AuthHandler {
	h.recorder = recorder
	return h
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// refreshRequest はトークン更新・ログアウトリクエストのボディ。
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// userResponse は認証レスポンスに含めるユーザー情報。
type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         userResponse `json:"user"`
}

// refreshResponse はトークン更新成功時のレスポンス。
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// messageResponse はメッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// Login はメールアドレスとパスワードで認証し、トークンペアを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.recorder.RecordLogin(false)
		handleServiceError(w, err)
		return
	}

	h.recorder.RecordLogin(true)

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User: userResponse{
			ID:    result.User.ID,
			Name:  result.User.Name,
			Email: result.User.Email,
			Role:  string(result.User.Role),
		},
	})
}

// Refresh はリフレッシュトークンを検証し、新しいアクセストークンを発行する。
// リフレッシュトークン自体は再発行しない。
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	accessToken, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: accessToken})
}

// Logout はリフレッシュトークンを失効させる。
// 既に失効済みのトークンでも成功を返す（冪等）。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "ログアウトしました。"})
}
