// Package model はドメインモデルを定義する。
package model

import "time"

// Role はプロフィールの権限区分を表す。
type Role string

const (
	// RoleUser は一般会員。
	RoleUser Role = "user"
	// RoleAdmin は管理者。管理ダッシュボードへのアクセスを許可する。
	RoleAdmin Role = "admin"
)

// プロフィール自動作成時の既定値。
const (
	// DefaultName はメールアドレスからも名前を導出できない場合のプレースホルダー。
	DefaultName = "Novo Membro"
	// DefaultGroup は小グループ未所属を表す既定値。
	DefaultGroup = "Não definido"
)

// Profile は外部認証サービスのIdentityを拡張するコミュニティ固有の会員情報を表す。
// IDはIdentityの安定識別子と常に一致し、アプリケーション側で生成・再割り当てしない。
// Identityごとに最大1行。初回サインイン時に遅延作成され、以後は明示的な
// プロフィール編集でのみ更新される。削除はこのアプリケーションの責務外。
type Profile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Group       string    `json:"member_group"`
	MemberSince time.Time `json:"member_since"`
	Avatar      string    `json:"avatar"`
	Role        Role      `json:"role"`
}

// IsAdmin は管理者権限を持つかを返す。
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}
