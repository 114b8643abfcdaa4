// Package repository はデータ永続化層を提供する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/userhub/internal/model"
)

// ErrNotFound は更新・削除対象の行が存在しない場合に返されるエラー。
var ErrNotFound = errors.New("user not found")

// ErrDuplicateEmail はメールアドレスの一意制約違反で返されるエラー。
var ErrDuplicateEmail = errors.New("duplicate email")

// ListParams はユーザー一覧取得の条件を表す。
type ListParams struct {
	Offset int
	Limit  int
	Search string // 名前またはメールアドレスの部分一致（空なら全件）
}

// UserRepository はユーザーの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// List は条件に一致するユーザーの一覧と総件数を返す。作成日時の降順。
	List(ctx context.Context, params ListParams) ([]*model.User, int, error)
	// Create はユーザーを作成する。メール重複時はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error
	// Update はユーザーの全フィールドを更新する。対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, user *model.User) error
	// DeleteByID は指定IDのユーザーを削除する。対象が存在しない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id string) error
}
