package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/userhub/internal/metrics"
	"github.com/hitoshi/userhub/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ロギング。nilの場合はslog.Default()を使う。
	Logger *slog.Logger

	// サービス
	AuthService AuthServiceInterface
	UserService UserServiceInterface

	// 監視
	Collector *metrics.Collector
	Gatherer  prometheus.Gatherer

	// ヘルスチェック
	DBPinger    Pinger
	RedisPinger Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → Metrics
//	認証が必要なルートではさらに Auth → RateLimit(General)
//
// 認証ルート（/auth/*）は認証ミドルウェアの外に配置し、
// /auth/loginのみIPベースのレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Collector != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Collector))
	}

	authHandler := NewAuthHandler(deps.AuthService)
	if deps.Collector != nil {
		authHandler = authHandler.WithLoginRecorder(deps.Collector)
	}
	userHandler := NewUserHandler(deps.UserService)
	healthHandler := NewHealthHandler(deps.DBPinger, deps.RedisPinger)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler.Check)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		// ログインのみブルートフォース対策のIPベースレート制限を追加
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", userHandler.List)

			// 作成は管理者専用
			r.With(middleware.NewRequireAdminMiddleware()).Post("/", userHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.Get)
				// 更新は本人または管理者（ハンドラー内で判定）
				r.Put("/", userHandler.Update)
				// 削除は管理者専用
				r.With(middleware.NewRequireAdminMiddleware()).Delete("/", userHandler.Delete)
			})
		})
	})

	return r
}
