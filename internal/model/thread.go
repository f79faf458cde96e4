package model

import "time"

// Thread 主题表模型
type Thread struct {
	ID            int64     `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	Slug          string    `db:"slug" json:"slug"` // 同一版块内唯一
	StructureID   int64     `db:"structure_id" json:"structure_id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	IsSticky      bool      `db:"is_sticky" json:"is_sticky"`
	IsLocked      bool      `db:"is_locked" json:"is_locked"`
	IsSolved      bool      `db:"is_solved" json:"is_solved"`
	SolvingPostID *int64    `db:"solving_post_id" json:"solving_post_id,omitempty"`
	ViewCount     int64     `db:"view_count" json:"view_count"`
	PostCount     int64     `db:"post_count" json:"post_count"`
	HotScore      float64   `db:"hot_score" json:"hot_score"`
	LastPostAt    time.Time `db:"last_post_at" json:"last_post_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Post 帖子表模型
type Post struct {
	ID          int64     `db:"id" json:"id"`
	ThreadID    int64     `db:"thread_id" json:"thread_id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Content     string    `db:"content" json:"content"`
	IsFirstPost bool      `db:"is_first_post" json:"is_first_post"`
	LikeCount   int64     `db:"like_count" json:"like_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Permissions 由鉴权上下文提供的操作标记
type Permissions struct {
	CanEdit     bool `json:"can_edit"`
	CanDelete   bool `json:"can_delete"`
	CanModerate bool `json:"can_moderate"`
}

// ThreadView 列表/详情响应（EnrichedThreadView）
type ThreadView struct {
	Thread
	Author      *AuthorSummary   `json:"author"`
	Category    *CategorySummary `json:"category"`
	Zone        *ZoneInfo        `json:"zone"`
	Excerpt     string           `json:"excerpt"`
	Tags        []*Tag           `json:"tags,omitempty"`
	Permissions *Permissions     `json:"permissions,omitempty"`
}

// Tab 列表视图
const (
	TabTrending  = "trending"
	TabRecent    = "recent"
	TabFollowing = "following"
)

// ThreadSort 排序方式
type ThreadSort string

const (
	SortRecent      ThreadSort = "recent"
	SortTrending    ThreadSort = "trending"
	SortMostReplies ThreadSort = "mostReplies"
	SortMostViews   ThreadSort = "mostViews"
	SortActive      ThreadSort = "active"
)

// ThreadFilters searchThreads 入参
type ThreadFilters struct {
	ForumID     *int64     `json:"forum_id,omitempty"`
	Search      string     `json:"search,omitempty"`
	UserID      *int64     `json:"user_id,omitempty"`
	Tag         string     `json:"tag,omitempty"`
	FollowerID  *int64     `json:"follower_id,omitempty"`
	Sort        ThreadSort `json:"sort,omitempty"`
	StickyFirst bool       `json:"sticky_first,omitempty"`
	Page        int        `json:"page"`
	Limit       int        `json:"limit"`
}

// ThreadQuery 仓储层查询条件（版块已展开）
type ThreadQuery struct {
	NodeIDs     []int64
	Search      string
	UserID      *int64
	TagSlug     string
	FollowerID  *int64
	Sort        ThreadSort
	StickyFirst bool
	Offset      int
	Limit       int
}

// TabPage fetchThreadsByTab 结果
type TabPage struct {
	Items   []*ThreadView `json:"items"`
	HasMore bool          `json:"has_more"`
	Total   int           `json:"total"`
	Page    int           `json:"page"`
}

// SearchResult searchThreads 结果
type SearchResult struct {
	Threads    []*ThreadView `json:"threads"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
}

// CreateThreadInput 创建主题请求
type CreateThreadInput struct {
	ForumID int64    `json:"forum_id"`
	UserID  int64    `json:"-"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// SolvedInput 标记/取消已解决
type SolvedInput struct {
	ThreadID      int64  `json:"-"`
	SolvingPostID *int64 `json:"solving_post_id"`
}
