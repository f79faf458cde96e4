package service

import (
	"context"
	"fmt"
	"strings"

	"forum_go/internal/model"
	"forum_go/internal/repository"
)

const (
	maxTagsPerThread = 10
	maxTagNameLen    = 32 // 按字符计
	maxTagSlugLen    = 64
)

// TagService Tag 业务服务
type TagService struct {
	repo      repository.TagRepository
	threadTag repository.ThreadTagRepository
}

// NewTagService 创建 TagService 实例
func NewTagService(repo repository.TagRepository, threadTag repository.ThreadTagRepository) *TagService {
	return &TagService{
		repo:      repo,
		threadTag: threadTag,
	}
}

// TagSlug 标签 slug；纯非 ASCII 名称使用小写原文
func TagSlug(name string) string {
	if s := slugify(name, maxTagSlugLen); s != "" {
		return s
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeTags 去空白、按 slug 去重，最多保留 maxTagsPerThread 个
func NormalizeTags(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		slug := TagSlug(name)
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, name)
		if len(out) == maxTagsPerThread {
			break
		}
	}
	return out
}

// Attach 查找或创建标签并关联到主题
func (s *TagService) Attach(ctx context.Context, threadID int64, names []string) ([]*model.Tag, error) {
	names = NormalizeTags(names)
	tags := make([]*model.Tag, 0, len(names))
	for _, name := range names {
		slug := TagSlug(name)
		id, err := s.repo.Upsert(ctx, name, slug)
		if err != nil {
			return tags, fmt.Errorf("upsert tag %q: %w", name, err)
		}
		if err := s.threadTag.Link(ctx, &model.ThreadTag{ThreadID: threadID, TagID: id}); err != nil {
			return tags, fmt.Errorf("link tag %d: %w", id, err)
		}
		tags = append(tags, &model.Tag{ID: id, Name: name, Slug: slug})
	}
	return tags, nil
}

// ForThread 主题的标签
func (s *TagService) ForThread(ctx context.Context, threadID int64) ([]*model.Tag, error) {
	return s.repo.GetByThread(ctx, threadID)
}
