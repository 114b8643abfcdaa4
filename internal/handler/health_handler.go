package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger は依存先の疎通確認インターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingerFunc は関数をPingerに適合させるアダプタ。
type PingerFunc func(ctx context.Context) error

// PingContext は関数を呼び出す。
func (f PingerFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
// DBとRedisの疎通を確認し、いずれかが落ちていれば503を返す。
type HealthHandler struct {
	db    Pinger
	redis Pinger
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// Check はヘルスチェックを実行する。
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok", Redis: "ok"}
	statusCode := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}
	if err := h.redis.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Redis = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}
