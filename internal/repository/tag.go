package repository

import (
	"context"

	"forum_go/internal/model"

	"github.com/jmoiron/sqlx"
)

// TagRepository Tag 数据访问接口
type TagRepository interface {
	Upsert(ctx context.Context, name, slug string) (int64, error)
	GetByThread(ctx context.Context, threadID int64) ([]*model.Tag, error)
}

// tagRepository Tag 数据访问实现
type tagRepository struct {
	db *sqlx.DB
}

// NewTagRepository 创建 TagRepository 实例
func NewTagRepository(db *sqlx.DB) TagRepository {
	return &tagRepository{db: db}
}

// Upsert 按 slug 查找或创建，返回 tag id
func (r *tagRepository) Upsert(ctx context.Context, name, slug string) (int64, error) {
	// LAST_INSERT_ID(id) 让冲突分支也返回已有行的 id
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO tag (name, slug, created_at) VALUES (?, ?, UTC_TIMESTAMP()) ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)",
		name, slug)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetByThread 获取主题关联的 Tag
func (r *tagRepository) GetByThread(ctx context.Context, threadID int64) ([]*model.Tag, error) {
	var tags []*model.Tag
	query := `
		SELECT t.id, t.name, t.slug, t.created_at FROM tag t
		INNER JOIN thread_tag tt ON t.id = tt.tag_id
		WHERE tt.thread_id = ?
		ORDER BY t.name ASC
	`
	if err := r.db.SelectContext(ctx, &tags, query, threadID); err != nil {
		return nil, err
	}
	return tags, nil
}
