package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"forum_go/internal/core/logger"
	"forum_go/internal/core/metrics"
	"forum_go/internal/core/mq"
	"forum_go/internal/core/snowflake"
	"forum_go/internal/model"
	"forum_go/internal/pkg/apperr"
	"forum_go/internal/repository"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func validateCreate(in *model.CreateThreadInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	return validation.ValidateStruct(in,
		validation.Field(&in.ForumID, validation.Required.Error("forum is required")),
		validation.Field(&in.UserID, validation.Required),
		validation.Field(&in.Title, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&in.Content, validation.Required),
		validation.Field(&in.Tags, validation.Length(0, maxTagsPerThread), validation.Each(validation.RuneLength(0, maxTagNameLen))),
	)
}

// Create 创建主题：事务写入主题 + 首帖，之后处理标签、提及、事件和缓存失效
// 事务提交后的步骤失败只记录日志
func (s *ThreadService) Create(ctx context.Context, in *model.CreateThreadInput) (*model.ThreadView, error) {
	if err := validateCreate(in); err != nil {
		return nil, apperr.Validation(err)
	}

	forum, err := s.forums.Get(ctx, in.ForumID)
	if err != nil {
		return nil, err
	}
	if forum == nil {
		return nil, apperr.Validationf("forum %d not found", in.ForumID)
	}
	if forum.IsZone() {
		return nil, apperr.Validationf("threads cannot be filed under zone %d", in.ForumID)
	}

	thread, post, err := s.persist(ctx, in)
	if err != nil {
		logger.Error("create thread failed",
			logger.Int64("forum_id", in.ForumID),
			logger.Int64("user_id", in.UserID),
			logger.ErrorField(err))
		return nil, err
	}
	metrics.ThreadsCreated.Inc()

	// 已提交，后续步骤不受请求取消影响
	bg := context.WithoutCancel(ctx)

	if len(in.Tags) > 0 {
		if _, err := s.tags.Attach(bg, thread.ID, in.Tags); err != nil {
			logger.Warn("attach tags failed", logger.Int64("thread_id", thread.ID), logger.ErrorField(err))
		}
	}

	s.processMentions(bg, thread, post)
	s.emitCreated(bg, thread)

	if err := s.tabs.Invalidate(bg); err != nil {
		logger.Warn("tab cache invalidate failed", logger.Int64("thread_id", thread.ID), logger.ErrorField(err))
	}
	if err := s.zones.Invalidate(bg, thread.StructureID); err != nil {
		logger.Warn("zone memo invalidate failed", logger.Int64("forum_id", thread.StructureID), logger.ErrorField(err))
	}

	view, err := s.GetByID(bg, thread.ID, &model.Viewer{ID: in.UserID})
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, fmt.Errorf("thread %d missing after create: %w", thread.ID, apperr.ErrThreadNotFound)
	}
	return view, nil
}

// persist 事务失败（包括并发创建导致的 slug 唯一键冲突）直接返回，不在这一层重试
func (s *ThreadService) persist(ctx context.Context, in *model.CreateThreadInput) (*model.Thread, *model.Post, error) {
	base := Slugify(in.Title)
	taken, err := s.threads.SlugsWithPrefix(ctx, in.ForumID, SlugLookupPrefix(base))
	if err != nil {
		return nil, nil, fmt.Errorf("load slugs: %w", err)
	}

	now := s.now().UTC()
	thread := &model.Thread{
		ID:          snowflake.Generate(),
		Title:       in.Title,
		Slug:        UniqueSlug(base, taken),
		StructureID: in.ForumID,
		UserID:      in.UserID,
		HotScore:    HotScore(0, 1, 0, 0),
		LastPostAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	post := &model.Post{
		ID:          snowflake.Generate(),
		ThreadID:    thread.ID,
		UserID:      in.UserID,
		Content:     in.Content,
		IsFirstPost: true,
		CreatedAt:   now,
	}

	if err := s.threads.CreateWithFirstPost(ctx, thread, post); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, apperr.Conflict(fmt.Errorf("slug %q taken in forum %d: %w", thread.Slug, in.ForumID, err))
		}
		return nil, nil, err
	}
	return thread, post, nil
}

func (s *ThreadService) processMentions(ctx context.Context, thread *model.Thread, post *model.Post) {
	if s.mentions == nil {
		return
	}
	inputs := []MentionInput{
		{Content: thread.Title, AuthorID: thread.UserID, Type: "thread", ThreadID: thread.ID, Context: "title"},
		{Content: post.Content, AuthorID: thread.UserID, Type: "post", ThreadID: thread.ID, PostID: &post.ID, Context: "body"},
	}
	for _, in := range inputs {
		if _, err := s.mentions.ProcessMentions(ctx, in); err != nil {
			logger.Warn("process mentions failed",
				logger.Int64("thread_id", thread.ID),
				logger.String("context", in.Context),
				logger.ErrorField(err))
		}
	}
}

func (s *ThreadService) emitCreated(ctx context.Context, thread *model.Thread) {
	events := []struct {
		typ     string
		payload any
	}{
		{mq.EventThreadCreated, mq.ThreadCreated{
			ThreadID: thread.ID,
			ForumID:  thread.StructureID,
			UserID:   thread.UserID,
			Slug:     thread.Slug,
			Title:    thread.Title,
		}},
		{mq.EventAchievementProgress, mq.AchievementProgress{
			UserID: thread.UserID,
			Action: "thread_created",
			Count:  1,
		}},
	}
	for _, ev := range events {
		if err := s.emitter.Emit(ctx, ev.typ, ev.payload); err != nil {
			logger.Warn("emit event failed",
				logger.String("event", ev.typ),
				logger.Int64("thread_id", thread.ID),
				logger.ErrorField(err))
		}
	}
}
