package model

import "time"

// Tag 标签模型
type Tag struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

// ThreadTag 主题标签关联
type ThreadTag struct {
	ThreadID int64 `db:"thread_id"`
	TagID    int64 `db:"tag_id"`
}
