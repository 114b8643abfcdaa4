// Package session はリフレッシュトークンのセッションストアを提供する。
// トークン文字列そのものをキーとしてユーザーIDを保持し、
// エントリの削除（ログアウト）でトークンを失効させる。
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix はRedis上のキー接頭辞。
const keyPrefix = "refresh_token:"

// Store はRedisを使用したセッションストア。
type Store struct {
	rdb *redis.Client
}

// NewStore はStoreを生成する。
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Put はリフレッシュトークンとユーザーIDの対応をTTL付きで保存する。
// 既存エントリは上書きされる（冪等）。
func (s *Store) Put(ctx context.Context, refreshToken, userID string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, keyPrefix+refreshToken, userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// Get は対応するユーザーIDを返す。
// エントリ不在はエラーではなくok=falseで表す。err != nil はストア不達を意味し、
// 呼び出し側は「失効済み」と混同してはならない。
func (s *Store) Get(ctx context.Context, refreshToken string) (string, bool, error) {
	userID, err := s.rdb.Get(ctx, keyPrefix+refreshToken).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	return userID, true, nil
}

// Delete はエントリを削除する。不在のキーの削除はエラーにならない（冪等）。
func (s *Store) Delete(ctx context.Context, refreshToken string) error {
	if err := s.rdb.Del(ctx, keyPrefix+refreshToken).Err(); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}
