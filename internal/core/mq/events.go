package mq

// HierarchyEvent 版块树变更（由后台管理工具发布）
type HierarchyEvent struct {
	NodeID int64  `json:"node_id"`
	Action string `json:"action"` // created / moved / updated / deleted
}

// ThreadCreated thread.created 负载
type ThreadCreated struct {
	ThreadID int64  `json:"thread_id"`
	ForumID  int64  `json:"forum_id"`
	UserID   int64  `json:"user_id"`
	Slug     string `json:"slug"`
	Title    string `json:"title"`
}

// AchievementProgress achievement.progress 负载
type AchievementProgress struct {
	UserID int64  `json:"user_id"`
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// MentionCreated mention.created 负载
type MentionCreated struct {
	MentionedUserID int64  `json:"mentioned_user_id"`
	AuthorID        int64  `json:"author_id"`
	ThreadID        int64  `json:"thread_id"`
	PostID          *int64 `json:"post_id,omitempty"`
	Type            string `json:"type"`
	Context         string `json:"context"`
}
