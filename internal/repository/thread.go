package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"forum_go/internal/core/database"
	"forum_go/internal/model"
	"forum_go/internal/pkg/util"

	"github.com/jmoiron/sqlx"
)

const threadColumns = "t.id, t.title, t.slug, t.structure_id, t.user_id, t.is_sticky, t.is_locked, t.is_solved, " +
	"t.solving_post_id, t.view_count, t.post_count, t.hot_score, t.last_post_at, t.created_at, t.updated_at"

// ThreadRepository Thread数据访问接口
type ThreadRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Thread, error)
	GetBySlug(ctx context.Context, slug string, forumID *int64) (*model.Thread, error)
	Search(ctx context.Context, q *model.ThreadQuery) ([]*model.Thread, error)
	Count(ctx context.Context, q *model.ThreadQuery) (int, error)
	SlugsWithPrefix(ctx context.Context, forumID int64, prefix string) ([]string, error)
	CreateWithFirstPost(ctx context.Context, thread *model.Thread, post *model.Post) error
	IncViewCount(ctx context.Context, id int64) error
	SyncPostCount(ctx context.Context, id int64) error
	UpdateSolved(ctx context.Context, id int64, solvingPostID *int64, at time.Time) error
	RecalculateHotScores(ctx context.Context, since time.Time) (int64, error)
}

// threadRepository Thread数据访问实现
type threadRepository struct {
	db *sqlx.DB
}

// NewThreadRepository 创建ThreadRepository实例
func NewThreadRepository(db *sqlx.DB) ThreadRepository {
	return &threadRepository{db: db}
}

// GetByID 根据ID获取Thread
func (r *threadRepository) GetByID(ctx context.Context, id int64) (*model.Thread, error) {
	var thread model.Thread
	err := r.db.GetContext(ctx, &thread, "SELECT "+threadColumns+" FROM thread t WHERE t.id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

// GetBySlug forumID 为空时返回最新创建的同名 slug
func (r *threadRepository) GetBySlug(ctx context.Context, slug string, forumID *int64) (*model.Thread, error) {
	var (
		thread model.Thread
		err    error
	)
	if forumID != nil {
		err = r.db.GetContext(ctx, &thread,
			"SELECT "+threadColumns+" FROM thread t WHERE t.structure_id = ? AND t.slug = ?", *forumID, slug)
	} else {
		err = r.db.GetContext(ctx, &thread,
			"SELECT "+threadColumns+" FROM thread t WHERE t.slug = ? ORDER BY t.created_at DESC, t.id DESC LIMIT 1", slug)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

// Search 过滤 + 排序 + 分页
func (r *threadRepository) Search(ctx context.Context, q *model.ThreadQuery) ([]*model.Thread, error) {
	where, args := buildWhere(q)

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(threadColumns)
	b.WriteString(" FROM thread t")
	b.WriteString(where)
	b.WriteString(" ORDER BY ")
	b.WriteString(orderBy(q.Sort, q.StickyFirst))
	b.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, q.Limit, q.Offset)

	query, args, err := sqlx.In(b.String(), args...)
	if err != nil {
		return nil, err
	}

	threads := make([]*model.Thread, 0, q.Limit)
	if err := r.db.SelectContext(ctx, &threads, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return threads, nil
}

// Count 与 Search 相同条件的总数
func (r *threadRepository) Count(ctx context.Context, q *model.ThreadQuery) (int, error) {
	where, args := buildWhere(q)
	query, args, err := sqlx.In("SELECT COUNT(*) FROM thread t"+where, args...)
	if err != nil {
		return 0, err
	}

	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(query), args...); err != nil {
		return 0, err
	}
	return count, nil
}

func buildWhere(q *model.ThreadQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if len(q.NodeIDs) > 0 {
		conds = append(conds, "t.structure_id IN (?)")
		args = append(args, q.NodeIDs)
	}
	if q.Search != "" {
		conds = append(conds, "LOWER(t.title) LIKE ?")
		args = append(args, "%"+util.EscapeLike(strings.ToLower(q.Search))+"%")
	}
	if q.UserID != nil {
		conds = append(conds, "t.user_id = ?")
		args = append(args, *q.UserID)
	}
	if q.TagSlug != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM thread_tag tt INNER JOIN tag g ON g.id = tt.tag_id WHERE tt.thread_id = t.id AND g.slug = ?)")
		args = append(args, q.TagSlug)
	}
	if q.FollowerID != nil {
		conds = append(conds, "t.user_id IN (SELECT f.followee_id FROM user_follow f WHERE f.follower_id = ?)")
		args = append(args, *q.FollowerID)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// orderBy 所有排序以 id DESC 收尾，保证分页稳定
func orderBy(sort model.ThreadSort, stickyFirst bool) string {
	var b strings.Builder
	if stickyFirst {
		b.WriteString("t.is_sticky DESC, ")
	}
	switch sort {
	case model.SortTrending:
		b.WriteString("t.hot_score DESC, t.created_at DESC")
	case model.SortMostReplies:
		b.WriteString("t.post_count DESC")
	case model.SortMostViews:
		b.WriteString("t.view_count DESC")
	case model.SortActive:
		b.WriteString("t.last_post_at DESC")
	default:
		b.WriteString("t.created_at DESC")
	}
	b.WriteString(", t.id DESC")
	return b.String()
}

// SlugsWithPrefix 同一版块中以 prefix 开头的已用 slug
func (r *threadRepository) SlugsWithPrefix(ctx context.Context, forumID int64, prefix string) ([]string, error) {
	var slugs []string
	err := r.db.SelectContext(ctx, &slugs,
		"SELECT slug FROM thread WHERE structure_id = ? AND slug LIKE ?",
		forumID, util.EscapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	return slugs, nil
}

// CreateWithFirstPost 主题 + 首帖在同一事务中写入
// 主题以零计数插入，首帖写入后在事务内同步 post_count，提交前外部不可见
func (r *threadRepository) CreateWithFirstPost(ctx context.Context, thread *model.Thread, post *model.Post) error {
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO thread (id, title, slug, structure_id, user_id, is_sticky, is_locked, is_solved,
				solving_post_id, view_count, post_count, hot_score, last_post_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 0, 0, 0, NULL, 0, 0, ?, ?, ?, ?)`,
			thread.ID, thread.Title, thread.Slug, thread.StructureID, thread.UserID,
			thread.HotScore, thread.LastPostAt, thread.CreatedAt, thread.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert thread: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO post (id, thread_id, user_id, content, is_first_post, like_count, created_at)
			VALUES (?, ?, ?, ?, 1, 0, ?)`,
			post.ID, post.ThreadID, post.UserID, post.Content, post.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert first post: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE thread SET post_count = (SELECT COUNT(*) FROM post WHERE thread_id = ?) WHERE id = ?",
			thread.ID, thread.ID)
		if err != nil {
			return fmt.Errorf("sync post count: %w", err)
		}
		return nil
	})
	if isDuplicate(err) {
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	}
	if err == nil {
		thread.PostCount = 1
	}
	return err
}

// IncViewCount 原子自增浏览量
func (r *threadRepository) IncViewCount(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE thread SET view_count = view_count + 1 WHERE id = ?", id)
	return err
}

// SyncPostCount 以帖子表为准重算回复数和最后回复时间
func (r *threadRepository) SyncPostCount(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE thread t SET
			t.post_count = (SELECT COUNT(*) FROM post p WHERE p.thread_id = t.id),
			t.last_post_at = COALESCE((SELECT MAX(p.created_at) FROM post p WHERE p.thread_id = t.id), t.last_post_at)
		WHERE t.id = ?`, id)
	return err
}

// UpdateSolved solvingPostID 为 nil 时取消已解决
func (r *threadRepository) UpdateSolved(ctx context.Context, id int64, solvingPostID *int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE thread SET is_solved = ?, solving_post_id = ?, updated_at = ? WHERE id = ?",
		solvingPostID != nil, solvingPostID, at, id)
	return err
}

// RecalculateHotScores 重算 since 之后有活动的主题热度
// (views + posts*3 + likes*2) / (ageHours + 2)^1.2
func (r *threadRepository) RecalculateHotScores(ctx context.Context, since time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE thread t
		LEFT JOIN (
			SELECT thread_id, SUM(like_count) AS likes FROM post GROUP BY thread_id
		) l ON l.thread_id = t.id
		SET t.hot_score = (t.view_count + t.post_count * 3 + COALESCE(l.likes, 0) * 2)
			/ POW(GREATEST(TIMESTAMPDIFF(SECOND, t.created_at, UTC_TIMESTAMP()), 0) / 3600 + 2, 1.2)
		WHERE t.last_post_at >= ?`, since)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
