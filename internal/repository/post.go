package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// PostRepository 帖子数据访问接口
type PostRepository interface {
	FirstPostContents(ctx context.Context, threadIDs []int64) (map[int64]string, error)
	BelongsToThread(ctx context.Context, postID, threadID int64) (bool, error)
}

type postRepository struct {
	db *sqlx.DB
}

// NewPostRepository 创建 PostRepository 实例
func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

type firstPostRow struct {
	ThreadID int64  `db:"thread_id"`
	Content  string `db:"content"`
}

// FirstPostContents 每个主题最早一条帖子的内容，一次查询
func (r *postRepository) FirstPostContents(ctx context.Context, threadIDs []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`
		SELECT p.thread_id, p.content
		FROM post p
		INNER JOIN (
			SELECT thread_id, MIN(created_at) AS first_at
			FROM post
			WHERE thread_id IN (?)
			GROUP BY thread_id
		) f ON f.thread_id = p.thread_id AND f.first_at = p.created_at
		ORDER BY p.id ASC
	`, threadIDs)
	if err != nil {
		return nil, err
	}

	var rows []firstPostRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		// 同一时间戳多条时取 id 最小的
		if _, ok := out[row.ThreadID]; !ok {
			out[row.ThreadID] = row.Content
		}
	}
	return out, nil
}

// BelongsToThread 帖子是否属于该主题
func (r *postRepository) BelongsToThread(ctx context.Context, postID, threadID int64) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM post WHERE id = ? AND thread_id = ?", postID, threadID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
