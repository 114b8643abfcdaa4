// Package cache はRedisによるキャッシュアサイド層を提供する。
// 読み取りはキャッシュ優先でミス時にストアへフォールバックし、
// 書き込み側は該当キーを明示的に無効化する。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatchSize はプレフィックス無効化でのSCANの1回あたりの件数。
const scanBatchSize = 100

// Recorder はキャッシュのヒット・ミス・無効化を記録するインターフェース。
// metrics.Collectorの部分集合として定義する。
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheInvalidation()
}

// noopRecorder はメトリクス未設定時のデフォルト実装。
type noopRecorder struct{}

func (noopRecorder) RecordCacheHit()          {}
func (noopRecorder) RecordCacheMiss()         {}
func (noopRecorder) RecordCacheInvalidation() {}

// Cache はRedisを使用したキャッシュアサイド層。
// エントリはJSONシリアライズされたクエリ結果のスナップショットで、
// TTLで自然満了する。エントリの不在を「リソースが存在しない」と
// 解釈してはならない。
type Cache struct {
	rdb      *redis.Client
	ttl      time.Duration
	recorder Recorder
}

// New はCacheを生成する。
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, recorder: noopRecorder{}}
}

// WithRecorder はメトリクス記録先を設定したCacheを返す。
func (c *Cache) WithRecorder(r Recorder) *Cache {
	if r != nil {
		c.recorder = r
	}
	return c
}

// Get はキャッシュからJSON値を取得しdestにデコードする。ヒットしたらtrueを返す。
// 読み取り失敗はリクエスト失敗に昇格させず、ミスとして扱う
// （キャッシュ障害時は常にミスとなり、ストア本体への読み取りに退行する）。
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.recorder.RecordCacheMiss()
		return false
	}
	if err != nil {
		slog.Warn("cache read failed, falling through to store",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		c.recorder.RecordCacheMiss()
		return false
	}

	if err := json.Unmarshal(b, dest); err != nil {
		slog.Warn("cache entry is not decodable, treating as miss",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		c.recorder.RecordCacheMiss()
		return false
	}

	c.recorder.RecordCacheHit()
	return true
}

// Set は値をJSONシリアライズしてTTL付きで保存する。
// 保存失敗はキャッシュされないだけで致命的ではないため、ログに留める。
func (c *Cache) Set(ctx context.Context, key string, val any) {
	b, err := json.Marshal(val)
	if err != nil {
		slog.Warn("failed to serialize cache value",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		slog.Warn("cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// Delete は指定キーを削除する。
// 無効化の失敗は古いデータが読まれ続けることを意味するため、
// 読み取りと異なりエラーを呼び出し元に返す。
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache keys %v: %w", keys, err)
	}
	c.recorder.RecordCacheInvalidation()
	return nil
}

// DeletePrefix は接頭辞に一致するすべてのキーを削除する。
// ページネーション・フィルタ付きのコレクションキャッシュは過去に生成された
// キーの集合が事前に分からないため、プレフィックス単位で無効化する。
// KEYSではなくSCANを使い、バッチごとに削除する。
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.rdb.Scan(ctx, 0, prefix+"*", scanBatchSize).Iterator()

	batch := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= scanBatchSize {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to invalidate cache prefix %q: %w", prefix, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache prefix %q: %w", prefix, err)
	}

	if len(batch) > 0 {
		if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to invalidate cache prefix %q: %w", prefix, err)
		}
	}

	c.recorder.RecordCacheInvalidation()
	return nil
}
