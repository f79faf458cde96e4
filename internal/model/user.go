package model

// User 用户模型（只读，注册/登录不在本服务）
type User struct {
	ID        int64  `db:"id"`
	Username  string `db:"username"`
	AvatarURL string `db:"avatar_url"`
	Role      int    `db:"role"`   // 0: 普通用户, 1: 版主, 2: 管理员
	Status    int    `db:"status"` // 0: 正常, 1: 禁用
}

// Summary 作者摘要
func (u *User) Summary() *AuthorSummary {
	return &AuthorSummary{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}

// AuthorSummary 作者摘要
type AuthorSummary struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Viewer 当前请求的访问者（来自 JWT）
type Viewer struct {
	ID          int64
	Username    string
	CanModerate bool
}

// PermissionsFor 渲染权限标记，作者本人可编辑/删除
func (v *Viewer) PermissionsFor(t *Thread) *Permissions {
	if v == nil {
		return nil
	}
	own := v.ID == t.UserID
	return &Permissions{
		CanEdit:     own || v.CanModerate,
		CanDelete:   own || v.CanModerate,
		CanModerate: v.CanModerate,
	}
}
