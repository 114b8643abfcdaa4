package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/userhub/internal/auth"
	"github.com/hitoshi/userhub/internal/model"
)

func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1, // 1 req/sec
		GeneralBurst:    2, // バースト2
		LoginRate:       1,
		LoginBurst:      2,
		CleanupInterval: 1 * time.Minute,
	}
}

func authedRequest(method, path, userID string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	ctx := ContextWithClaims(req.Context(), &auth.Claims{ID: userID, Role: model.RoleUser})
	return req.WithContext(ctx)
}

// --- GeneralMiddleware (認証済みAPI全般) のテスト ---

func TestGeneralRateLimit_AllowsRequestsWithinBurst(t *testing.T) {
	cfg := testRateLimiterConfig()
	cfg.GeneralBurst = 5

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handlerCallCount := 0
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/users", "user-1"))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestGeneralRateLimit_Returns429WhenLimitExceeded(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// バースト分（2回）は通る
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/users", "user-rate-limit"))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	// 3回目はレート制限に引っかかる
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/users", "user-rate-limit"))

	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}

	// Retry-Afterは数値（秒）であること
	retryAfter := w.Result().Header.Get("Retry-After")
	if retryAfter == "" {
		t.Fatal("expected Retry-After header to be present")
	}
	retrySeconds, err := strconv.Atoi(retryAfter)
	if err != nil {
		t.Errorf("Retry-After header should be a number, got %q", retryAfter)
	}
	if retrySeconds < 1 {
		t.Errorf("Retry-After = %d, should be at least 1", retrySeconds)
	}
}

func TestGeneralRateLimit_IsolatesUsers(t *testing.T) {
	cfg := testRateLimiterConfig()
	cfg.GeneralBurst = 1

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// ユーザーAの1回目は通り、2回目は429
	wA := httptest.NewRecorder()
	handler.ServeHTTP(wA, authedRequest(http.MethodGet, "/api/users", "user-A"))
	if wA.Result().StatusCode != http.StatusOK {
		t.Errorf("user-A first request: status = %d, want %d", wA.Result().StatusCode, http.StatusOK)
	}

	wA2 := httptest.NewRecorder()
	handler.ServeHTTP(wA2, authedRequest(http.MethodGet, "/api/users", "user-A"))
	if wA2.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("user-A second request: status = %d, want %d", wA2.Result().StatusCode, http.StatusTooManyRequests)
	}

	// ユーザーBの1回目は通る（ユーザーAのレートに影響されない）
	wB := httptest.NewRecorder()
	handler.ServeHTTP(wB, authedRequest(http.MethodGet, "/api/users", "user-B"))
	if wB.Result().StatusCode != http.StatusOK {
		t.Errorf("user-B first request: status = %d, want %d", wB.Result().StatusCode, http.StatusOK)
	}
}

func TestGeneralRateLimit_NoClaims_Returns401(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called without claims")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// --- LoginMiddleware (ログイン試行) のテスト ---

func TestLoginRateLimit_KeyedByClientIP(t *testing.T) {
	cfg := testRateLimiterConfig()
	cfg.LoginBurst = 1

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handler := rl.LoginMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// 同一IPからの2回目は429
	req1 := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req1.RemoteAddr = "192.0.2.1:40000"
	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req1)
	if w1.Result().StatusCode != http.StatusOK {
		t.Errorf("first request: status = %d, want %d", w1.Result().StatusCode, http.StatusOK)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req2.RemoteAddr = "192.0.2.1:40001" // ポートが違っても同一IP
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)
	if w2.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want %d", w2.Result().StatusCode, http.StatusTooManyRequests)
	}

	// 別IPは影響を受けない
	req3 := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req3.RemoteAddr = "192.0.2.2:40000"
	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, req3)
	if w3.Result().StatusCode != http.StatusOK {
		t.Errorf("other IP: status = %d, want %d", w3.Result().StatusCode, http.StatusOK)
	}
}

func TestLoginRateLimit_DoesNotRequireAuthentication(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handlerCalled := false
	handler := rl.LoginMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	// クレームなしのリクエストでも通る（ログインは認証前）
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Error("handler should be called for unauthenticated login request")
	}
}

func TestLoginRateLimit_PrefersForwardedFor(t *testing.T) {
	cfg := testRateLimiterConfig()
	cfg.LoginBurst = 1

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handler := rl.LoginMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// プロキシ経由: RemoteAddrは同一でもX-Forwarded-Forが異なれば別クライアント
	for i, fwd := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:40000"
		req.Header.Set("X-Forwarded-For", fwd+", 10.0.0.1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("client %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}
}

// --- クリーンアップのテスト ---

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	cfg := testRateLimiterConfig()
	cfg.CleanupInterval = 1 * time.Millisecond

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/users", "user-stale"))

	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("limiter count = %d, want 1", rl.GeneralLimiterCount())
	}

	// クリーンアップTTL（CleanupIntervalの2倍）経過後にエントリが消える
	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		if rl.GeneralLimiterCount() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("limiter count = %d, want 0 after cleanup", rl.GeneralLimiterCount())
}
