package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/userhub/internal/model"
)

func testUser() *model.User {
	return &model.User{
		ID:    "user-123",
		Name:  "Alice",
		Email: "alice@example.com",
		Role:  model.RoleAdmin,
	}
}

func newTestTokenService() *TokenService {
	return NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
}

// アクセストークンのラウンドトリップで全クレームが復元されることを検証
func TestTokenService_AccessRoundTrip(t *testing.T) {
	svc := newTestTokenService()
	user := testUser()

	token, err := svc.IssueAccess(user)
	if err != nil {
		t.Fatalf("IssueAccess error = %v", err)
	}

	claims, err := svc.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess error = %v", err)
	}

	if claims.ID != user.ID {
		t.Errorf("ID = %q, want %q", claims.ID, user.ID)
	}
	if claims.Name != user.Name {
		t.Errorf("Name = %q, want %q", claims.Name, user.Name)
	}
	if claims.Email != user.Email {
		t.Errorf("Email = %q, want %q", claims.Email, user.Email)
	}
	if claims.Role != user.Role {
		t.Errorf("Role = %q, want %q", claims.Role, user.Role)
	}
}

// リフレッシュトークンのラウンドトリップを検証
func TestTokenService_RefreshRoundTrip(t *testing.T) {
	svc := newTestTokenService()

	_, refresh, err := svc.IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair error = %v", err)
	}

	claims, err := svc.VerifyRefresh(refresh)
	if err != nil {
		t.Fatalf("VerifyRefresh error = %v", err)
	}
	if claims.ID != "user-123" {
		t.Errorf("ID = %q, want user-123", claims.ID)
	}
}

// 有効期限内のトークンは受理され、期限切れのトークンは拒否されることを検証
func TestTokenService_Expiry(t *testing.T) {
	user := testUser()

	// TTL 15分のトークンは今すぐ検証すれば有効
	svc := newTestTokenService()
	token, err := svc.IssueAccess(user)
	if err != nil {
		t.Fatalf("IssueAccess error = %v", err)
	}
	if _, err := svc.VerifyAccess(token); err != nil {
		t.Errorf("token within TTL should verify: %v", err)
	}

	// 負のTTLで発行したトークンは発行直後から期限切れ
	expired := NewTokenService("access-secret", "refresh-secret", -time.Minute, -time.Minute)
	token, err = expired.IssueAccess(user)
	if err != nil {
		t.Fatalf("IssueAccess error = %v", err)
	}
	if _, err := expired.VerifyAccess(token); err == nil {
		t.Error("expired token should be rejected")
	}
}

// アクセストークンとリフレッシュトークンは署名鍵が異なり、相互検証できないことを検証
func TestTokenService_DistinctSecretsPerTokenClass(t *testing.T) {
	svc := newTestTokenService()

	access, refresh, err := svc.IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair error = %v", err)
	}

	if _, err := svc.VerifyRefresh(access); err == nil {
		t.Error("access token should not verify as refresh token")
	}
	if _, err := svc.VerifyAccess(refresh); err == nil {
		t.Error("refresh token should not verify as access token")
	}
}

// 異なるシークレットで署名されたトークンは拒否されることを検証
func TestTokenService_WrongSecretRejected(t *testing.T) {
	svc := newTestTokenService()
	other := NewTokenService("other-access", "other-refresh", 15*time.Minute, 7*24*time.Hour)

	token, err := other.IssueAccess(testUser())
	if err != nil {
		t.Fatalf("IssueAccess error = %v", err)
	}

	if _, err := svc.VerifyAccess(token); err == nil {
		t.Error("token signed with a different secret should be rejected")
	}
}

// 改ざんされたトークンは拒否されることを検証
func TestTokenService_TamperedTokenRejected(t *testing.T) {
	svc := newTestTokenService()

	token, err := svc.IssueAccess(testUser())
	if err != nil {
		t.Fatalf("IssueAccess error = %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := svc.VerifyAccess(tampered); err == nil {
		t.Error("tampered token should be rejected")
	}
}

// 必須クレームが欠けたトークンは署名が正しくても拒否されることを検証
func TestTokenService_MalformedClaimsRejected(t *testing.T) {
	svc := newTestTokenService()
	now := time.Now().UTC()

	tests := []struct {
		name   string
		claims jwtClaims
	}{
		{
			name: "missing user id",
			claims: jwtClaims{
				Email: "alice@example.com",
				Role:  "user",
				RegisteredClaims: jwt.RegisteredClaims{
					IssuedAt:  jwt.NewNumericDate(now),
					ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
				},
			},
		},
		{
			name: "unknown role",
			claims: jwtClaims{
				UserID: "user-123",
				Email:  "alice@example.com",
				Role:   "superuser",
				RegisteredClaims: jwt.RegisteredClaims{
					IssuedAt:  jwt.NewNumericDate(now),
					ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tt.claims).SignedString([]byte("access-secret"))
			if err != nil {
				t.Fatalf("failed to sign test token: %v", err)
			}

			if _, err := svc.VerifyAccess(signed); err == nil {
				t.Error("token with malformed claims should be rejected")
			}
		})
	}
}

// none署名アルゴリズムのトークンは拒否されることを検証
func TestTokenService_NoneAlgorithmRejected(t *testing.T) {
	svc := newTestTokenService()
	now := time.Now().UTC()

	cl := jwtClaims{
		UserID: "user-123",
		Email:  "alice@example.com",
		Role:   "user",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, cl).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to create unsigned token: %v", err)
	}

	if _, err := svc.VerifyAccess(unsigned); err == nil {
		t.Error("unsigned token should be rejected")
	}
}
