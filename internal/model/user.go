// Package model はドメインモデルを定義する。
package model

import (
	"regexp"
	"time"
)

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleUser は一般ユーザーを表す。
	RoleUser Role = "user"
	// RoleAdmin は管理者を表す。管理者のみユーザーの作成・削除と
	// 他ユーザーのロール変更が可能。
	RoleAdmin Role = "admin"
)

// ValidRole はロール文字列が定義済みのロールかを判定する。
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// User はサービス利用ユーザーを表す。
// PasswordHashはargon2idでエンコードされたダイジェストのみを保持し、
// 平文パスワードは保持しない。
type User struct {
	ID           string
	Name         string
	Email        string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// emailPattern は空白を含まない「local@domain.tld」形式のみを許可する。
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail はメールアドレスの形式を検証する。
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}
