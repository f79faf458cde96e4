package model

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/tidwall/gjson"
)

// NodeType 节点类型
type NodeType string

const (
	NodeZone     NodeType = "zone"
	NodeCategory NodeType = "category"
	NodeForum    NodeType = "forum"
)

// ForumNode 版块树节点（zone / category / forum）
type ForumNode struct {
	ID         int64          `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	Slug       string         `db:"slug" json:"slug"`
	Type       NodeType       `db:"type" json:"type"`
	ParentID   *int64         `db:"parent_id" json:"parent_id,omitempty"` // nil 表示 zone
	ColorTheme string         `db:"color_theme" json:"color_theme,omitempty"`
	PluginData types.JSONText `db:"plugin_data" json:"-"`
	SortOrder  int            `db:"sort_order" json:"sort_order"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// IsZone 无父节点即为 zone
func (n *ForumNode) IsZone() bool {
	return n.ParentID == nil
}

// ZoneInfo 将根节点转换为 zone 摘要
func (n *ForumNode) ZoneInfo() *ZoneInfo {
	return &ZoneInfo{
		ID:         n.ID,
		Name:       n.Name,
		Slug:       n.Slug,
		ColorTheme: n.ColorTheme,
		IsPrimary:  gjson.GetBytes(n.PluginData, "isPrimary").Bool(),
	}
}

// Summary 分类摘要
func (n *ForumNode) Summary() *CategorySummary {
	return &CategorySummary{
		ID:         n.ID,
		Name:       n.Name,
		Slug:       n.Slug,
		Type:       n.Type,
		ColorTheme: n.ColorTheme,
		ParentID:   n.ParentID,
	}
}

// ZoneInfo 派生数据，不落库
type ZoneInfo struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	ColorTheme string `json:"color_theme,omitempty"`
	IsPrimary  bool   `json:"is_primary"`
}

// CategorySummary 主题所在版块摘要
type CategorySummary struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Slug       string   `json:"slug"`
	Type       NodeType `json:"type"`
	ColorTheme string   `json:"color_theme,omitempty"`
	ParentID   *int64   `json:"parent_id,omitempty"`
}

// ForumTreeNode 论坛树结构
type ForumTreeNode struct {
	ID         int64            `json:"id"`
	Name       string           `json:"name"`
	Slug       string           `json:"slug"`
	Type       NodeType         `json:"type"`
	ColorTheme string           `json:"color_theme,omitempty"`
	SortOrder  int              `json:"sort_order"`
	Children   []*ForumTreeNode `json:"children,omitempty"`
}
