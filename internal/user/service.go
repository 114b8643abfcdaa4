// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/userhub/internal/model"
	"github.com/hitoshi/userhub/internal/repository"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100

	// collectionPrefix はユーザー一覧キャッシュのキー接頭辞。
	// ページ・検索条件ごとにキーが分かれるため、書き込み時は
	// 接頭辞単位でまとめて無効化する。
	collectionPrefix = "users:"
)

// CacheLayer はユーザーサービスが必要とするキャッシュインターフェース。
// cache.Cacheの部分集合として定義する。
type CacheLayer interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, val any)
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// PasswordHasher はパスワードダイジェストの生成インターフェース。
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// View はAPIレスポンスとキャッシュエントリに使うユーザーのスナップショット。
// パスワードダイジェストは含まない。
type View struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Pagination はページネーション情報を表す。
type Pagination struct {
	Total   int `json:"total"`
	Pages   int `json:"pages"`
	Current int `json:"current"`
}

// ListResult はユーザー一覧のレスポンス（キャッシュされるスナップショット）。
type ListResult struct {
	Data       []View     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// CreateInput はユーザー作成の入力を表す。
type CreateInput struct {
	Name     string
	Email    string
	Password string
	Role     string // 省略時は "user"
}

// UpdateInput はユーザー更新の入力を表す。空フィールドは変更しない。
type UpdateInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Service はユーザーCRUDとキャッシュ一貫性ポリシーを提供する。
// すべての書き込みは「ストア書き込み → キャッシュ無効化」の順で行う。
// 逆順にすると、無効化とストア書き込みの間に並行リーダーが
// 書き込み前の古いデータでキャッシュを再作成する窓が生じる。
type Service struct {
	repo   repository.UserRepository
	cache  CacheLayer
	hasher PasswordHasher
}

// NewService はServiceを生成する。
func NewService(repo repository.UserRepository, cache CacheLayer, hasher PasswordHasher) *Service {
	return &Service{repo: repo, cache: cache, hasher: hasher}
}

// userKey は単一エンティティキャッシュのキーを返す。
func userKey(id string) string {
	return "user:" + id
}

// listKey はページ・件数・検索条件ごとの一覧キャッシュのキーを返す。
func listKey(page, limit int, search string) string {
	return fmt.Sprintf("%s%d:%d:%s", collectionPrefix, page, limit, search)
}

// List は条件に一致するユーザー一覧を返す。キャッシュ優先で読み取り、
// ミス時はストアに問い合わせて結果をキャッシュする。
// 同一キーへの並行ミスはそれぞれ独立にストアへ問い合わせる
// （シングルフライトは行わない）。
func (s *Service) List(ctx context.Context, page, limit int, search string) (*ListResult, error) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	key := listKey(page, limit, search)

	cached := &ListResult{}
	if s.cache.Get(ctx, key, cached) {
		return cached, nil
	}

	users, total, err := s.repo.List(ctx, repository.ListParams{
		Offset: (page - 1) * limit,
		Limit:  limit,
		Search: search,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := &ListResult{
		Data: make([]View, len(users)),
		Pagination: Pagination{
			Total: total,
			// 切り上げ除算: total=95, limit=10 -> 10ページ
			Pages:   (total + limit - 1) / limit,
			Current: page,
		},
	}
	for i, u := range users {
		result.Data[i] = toView(u)
	}

	s.cache.Set(ctx, key, result)

	return result, nil
}

// Get は指定IDのユーザーを返す。キャッシュ優先で読み取る。
// キャッシュエントリの不在は「ユーザーが存在しない」を意味しないため、
// 必ずストアへフォールバックしてから404を判定する。
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	key := userKey(id)

	cached := &View{}
	if s.cache.Get(ctx, key, cached) {
		return cached, nil
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	view := toView(user)
	s.cache.Set(ctx, key, view)

	return &view, nil
}

// Create はユーザーを作成する。ストア呼び出しの前に入力を検証し、
// 作成後はコレクションキャッシュを接頭辞単位で無効化する。
// 新しい行がどのページ・検索条件に現れるか事前に分からないため。
func (s *Service) Create(ctx context.Context, input CreateInput) (*View, error) {
	if input.Name == "" || input.Email == "" || input.Password == "" {
		return nil, model.NewValidationError("名前、メールアドレス、パスワードは必須です。")
	}
	if !model.ValidEmail(input.Email) {
		return nil, model.NewValidationError("メールアドレスの形式が不正です。")
	}

	role := input.Role
	if role == "" {
		role = string(model.RoleUser)
	}
	if !model.ValidRole(role) {
		return nil, model.NewValidationError("ロールは user または admin を指定してください。")
	}

	existing, err := s.repo.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailInUseError()
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         input.Name,
		Email:        input.Email,
		Role:         model.Role(role),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		// 事前チェックと挿入の間に同じメールで作成された場合は一意制約で検出する
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailInUseError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("role", role),
	)

	if err := s.invalidateCollections(ctx); err != nil {
		return nil, err
	}

	view := toView(user)
	return &view, nil
}

// Update はユーザーを部分更新する。
// ロールの変更はallowRoleChange（呼び出し元が管理者の場合のみtrue）の
// 場合にのみ適用し、それ以外は黙って無視する。
func (s *Service) Update(ctx context.Context, id string, input UpdateInput, allowRoleChange bool) (*View, error) {
	// ストアを変更する前に入力を検証する
	if input.Email != "" && !model.ValidEmail(input.Email) {
		return nil, model.NewValidationError("メールアドレスの形式が不正です。")
	}
	if input.Role != "" && !model.ValidRole(input.Role) {
		return nil, model.NewValidationError("ロールは user または admin を指定してください。")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if input.Name != "" {
		user.Name = input.Name
	}
	if input.Email != "" {
		user.Email = input.Email
	}
	if input.Role != "" && allowRoleChange {
		user.Role = model.Role(input.Role)
	}
	if input.Password != "" {
		passwordHash, err := s.hasher.Hash(input.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = passwordHash
	}
	user.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailInUseError()
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	slog.Info("user updated", slog.String("user_id", id))

	if err := s.invalidateUser(ctx, id); err != nil {
		return nil, err
	}

	view := toView(user)
	return &view, nil
}

// Delete は指定IDのユーザーを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user deleted", slog.String("user_id", id))

	return s.invalidateUser(ctx, id)
}

// invalidateUser は単一エンティティキーとコレクション接頭辞の両方を無効化する。
// 変更によって行が現れる・消えるページや検索条件が変わりうるため、
// コレクション側もまとめて無効化しないと自然満了まで古い一覧が返り続ける。
func (s *Service) invalidateUser(ctx context.Context, id string) error {
	if err := s.cache.Delete(ctx, userKey(id)); err != nil {
		return err
	}
	return s.invalidateCollections(ctx)
}

func (s *Service) invalidateCollections(ctx context.Context) error {
	return s.cache.DeletePrefix(ctx, collectionPrefix)
}

func toView(u *model.User) View {
	return View{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}
