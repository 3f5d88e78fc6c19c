package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/lumina/internal/backend"
	"github.com/hitoshi/lumina/internal/model"
)

// avatarURLFormat はIdentity IDから決定的に導出されるアバター画像のロケーター。
// 同一IDは常に同一画像になる。
const avatarURLFormat = "https://i.pravatar.cc/150?u=%s"

// NewProfileFromIdentity はIdentityのメタデータから初回サインイン用の
// Profileを合成する。既定値:
//   - Name: メタデータのname → メールのローカルパート → model.DefaultName
//   - Phone: メタデータのphone、なければ空
//   - Group: メタデータのgroup、なければmodel.DefaultGroup
//   - MemberSince: now（作成時に1回だけ設定）
//   - Avatar: Identity IDから決定的に導出
//   - Role: user
func NewProfileFromIdentity(identity *backend.Identity, now time.Time) *model.Profile {
	name := identity.MetadataString("name")
	if name == "" {
		name = emailLocalPart(identity.Email)
	}
	if name == "" {
		name = model.DefaultName
	}

	group := identity.MetadataString("group")
	if group == "" {
		group = model.DefaultGroup
	}

	return &model.Profile{
		ID:          identity.ID,
		Name:        name,
		Email:       identity.Email,
		Phone:       identity.MetadataString("phone"),
		Group:       group,
		MemberSince: now,
		Avatar:      fmt.Sprintf(avatarURLFormat, identity.ID),
		Role:        model.RoleUser,
	}
}

// emailLocalPart はメールアドレスの@より前の部分を返す。
// アドレスとして不正な形式の場合は空文字列を返す。
func emailLocalPart(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return ""
	}
	return email[:at]
}
