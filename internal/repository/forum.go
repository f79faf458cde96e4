package repository

import (
	"context"
	"database/sql"
	"errors"

	"forum_go/internal/model"

	"github.com/jmoiron/sqlx"
)

const forumColumns = "id, name, slug, type, parent_id, COALESCE(color_theme, '') AS color_theme, plugin_data, sort_order, created_at, updated_at"

// ForumRepository 版块树数据访问接口
type ForumRepository interface {
	GetByID(ctx context.Context, id int64) (*model.ForumNode, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*model.ForumNode, error)
	GetAll(ctx context.Context) ([]*model.ForumNode, error)
	GetDescendantIDs(ctx context.Context, id int64, maxDepth int) ([]int64, error)
}

// forumRepository Forum 数据访问实现
type forumRepository struct {
	db *sqlx.DB
}

// NewForumRepository 创建 ForumRepository 实例
func NewForumRepository(db *sqlx.DB) ForumRepository {
	return &forumRepository{db: db}
}

// GetByID 根据 ID 获取节点，不存在返回 nil
func (r *forumRepository) GetByID(ctx context.Context, id int64) (*model.ForumNode, error) {
	var node model.ForumNode
	err := r.db.GetContext(ctx, &node, "SELECT "+forumColumns+" FROM forum_node WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &node, nil
}

// GetByIDs 批量获取节点
func (r *forumRepository) GetByIDs(ctx context.Context, ids []int64) ([]*model.ForumNode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+forumColumns+" FROM forum_node WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}

	var nodes []*model.ForumNode
	if err := r.db.SelectContext(ctx, &nodes, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return nodes, nil
}

// GetAll 获取全部节点
func (r *forumRepository) GetAll(ctx context.Context) ([]*model.ForumNode, error) {
	var nodes []*model.ForumNode
	err := r.db.SelectContext(ctx, &nodes, "SELECT "+forumColumns+" FROM forum_node ORDER BY sort_order ASC, id ASC")
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// GetDescendantIDs 单次递归 CTE 展开所有子孙节点（不含自身）
// depth 上限防止脏数据成环时无限递归
func (r *forumRepository) GetDescendantIDs(ctx context.Context, id int64, maxDepth int) ([]int64, error) {
	query := `
		WITH RECURSIVE subtree (id, depth) AS (
			SELECT id, 0 FROM forum_node WHERE id = ?
			UNION ALL
			SELECT n.id, s.depth + 1
			FROM forum_node n
			INNER JOIN subtree s ON n.parent_id = s.id
			WHERE s.depth < ?
		)
		SELECT DISTINCT id FROM subtree WHERE id <> ? ORDER BY id
	`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, id, maxDepth, id); err != nil {
		return nil, err
	}
	return ids, nil
}
