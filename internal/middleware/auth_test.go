package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/userhub/internal/auth"
	"github.com/hitoshi/userhub/internal/model"
)

// mockTokenVerifier はテスト用のTokenVerifierモック。
type mockTokenVerifier struct {
	verifyAccessFn func(token string) (*auth.Claims, error)
}

func (m *mockTokenVerifier) VerifyAccess(token string) (*auth.Claims, error) {
	if m.verifyAccessFn != nil {
		return m.verifyAccessFn(token)
	}
	return nil, errors.New("not configured")
}

func adminClaims() *auth.Claims {
	return &auth.Claims{ID: "admin-1", Name: "管理者", Email: "admin@example.com", Role: model.RoleAdmin}
}

func userClaims() *auth.Claims {
	return &auth.Claims{ID: "user-1", Name: "田中", Email: "tanaka@example.com", Role: model.RoleUser}
}

func TestAuthMiddleware_InjectsClaims(t *testing.T) {
	verifier := &mockTokenVerifier{
		verifyAccessFn: func(token string) (*auth.Claims, error) {
			if token != "valid-token" {
				t.Errorf("token = %q, want valid-token", token)
			}
			return userClaims(), nil
		},
	}

	var gotClaims *auth.Claims
	handler := NewAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := ClaimsFromContext(r.Context())
		if err != nil {
			t.Fatalf("claims not in context: %v", err)
		}
		gotClaims = claims
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotClaims == nil || gotClaims.ID != "user-1" {
		t.Errorf("claims = %+v, want user-1", gotClaims)
	}
}

func TestAuthMiddleware_RejectsMissingOrMalformedHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "ヘッダーなし", header: ""},
		{name: "スキームなし", header: "valid-token"},
		{name: "Bearer以外のスキーム", header: "Basic dXNlcjpwYXNz"},
		{name: "トークン部が空", header: "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &mockTokenVerifier{
				verifyAccessFn: func(token string) (*auth.Claims, error) {
					t.Error("verifier should not be called for malformed header")
					return nil, nil
				},
			}

			handler := NewAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Result().StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_RejectsInvalidToken(t *testing.T) {
	verifier := &mockTokenVerifier{
		verifyAccessFn: func(token string) (*auth.Claims, error) {
			return nil, auth.ErrInvalidToken
		},
	}

	handler := NewAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for invalid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestRequireAdmin_AllowsAdmin(t *testing.T) {
	handlerCalled := false
	handler := NewRequireAdminMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/users", nil)
	req = req.WithContext(ContextWithClaims(req.Context(), adminClaims()))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Error("handler should be called for admin")
	}
}

func TestRequireAdmin_Returns403ForNonAdmin(t *testing.T) {
	// 認証済みだが権限不足は401ではなく403
	handler := NewRequireAdminMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for non-admin")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/users", nil)
	req = req.WithContext(ContextWithClaims(req.Context(), userClaims()))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodeForbidden {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeForbidden)
	}
}

func TestRequireAdmin_Returns401WithoutClaims(t *testing.T) {
	handler := NewRequireAdminMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called without claims")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/users", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestClaimsFromContext_MissingReturnsError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := ClaimsFromContext(req.Context()); err == nil {
		t.Error("expected error for context without claims")
	}
}
