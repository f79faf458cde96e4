package repository

import (
	"context"

	"forum_go/internal/model"

	"github.com/jmoiron/sqlx"
)

// ThreadTagRepository ThreadTag 数据访问接口
type ThreadTagRepository interface {
	Link(ctx context.Context, tt *model.ThreadTag) error
}

// threadTagRepository ThreadTag 数据访问实现
type threadTagRepository struct {
	db *sqlx.DB
}

// NewThreadTagRepository 创建 ThreadTagRepository 实例
func NewThreadTagRepository(db *sqlx.DB) ThreadTagRepository {
	return &threadTagRepository{db: db}
}

// Link 创建关联，已存在时忽略
func (r *threadTagRepository) Link(ctx context.Context, tt *model.ThreadTag) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT IGNORE INTO thread_tag (thread_id, tag_id) VALUES (?, ?)",
		tt.ThreadID, tt.TagID)
	return err
}
