package repository

import (
	"context"

	"forum_go/internal/model"

	"github.com/jmoiron/sqlx"
)

// UserRepository 用户数据访问接口（只读）
type UserRepository interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error)
	GetByUsernames(ctx context.Context, usernames []string) ([]*model.User, error)
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

type userRepository struct {
	db *sqlx.DB
}

// GetByIDs 批量获取用户
func (r *userRepository) GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT id, username, COALESCE(avatar_url, '') AS avatar_url, role, status
		FROM user WHERE id IN (?)
	`, ids)
	if err != nil {
		return nil, err
	}

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return users, nil
}

// GetByUsernames 根据用户名批量获取正常状态用户
func (r *userRepository) GetByUsernames(ctx context.Context, usernames []string) ([]*model.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT id, username, COALESCE(avatar_url, '') AS avatar_url, role, status
		FROM user WHERE username IN (?) AND status = 0
	`, usernames)
	if err != nil {
		return nil, err
	}

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return users, nil
}
