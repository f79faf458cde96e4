package service

import (
	"context"
	"fmt"
	"time"

	"forum_go/internal/core/config"
	"forum_go/internal/core/logger"
	"forum_go/internal/core/metrics"
	"forum_go/internal/core/mq"
	"forum_go/internal/model"
	"forum_go/internal/pkg/apperr"
	"forum_go/internal/pkg/util"
	"forum_go/internal/repository"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ThreadDeps ThreadService 依赖
type ThreadDeps struct {
	Threads  repository.ThreadRepository
	Posts    repository.PostRepository
	Forums   *ForumService
	Zones    *ZoneResolver
	Enricher *Enricher
	Tabs     *TabCache
	Tags     *TagService
	Mentions MentionProcessor
	Emitter  mq.Emitter
	Config   *config.ThreadConfig
}

// ThreadService 主题聚合与生命周期
type ThreadService struct {
	threads  repository.ThreadRepository
	posts    repository.PostRepository
	forums   *ForumService
	zones    *ZoneResolver
	enricher *Enricher
	tabs     *TabCache
	tags     *TagService
	mentions MentionProcessor
	emitter  mq.Emitter
	cfg      *config.ThreadConfig
	sf       *singleflight.Group
	now      func() time.Time
}

// NewThreadService 创建ThreadService实例
func NewThreadService(d ThreadDeps) *ThreadService {
	emitter := d.Emitter
	if emitter == nil {
		emitter = mq.NewNoop()
	}
	return &ThreadService{
		threads:  d.Threads,
		posts:    d.Posts,
		forums:   d.Forums,
		zones:    d.Zones,
		enricher: d.Enricher,
		tabs:     d.Tabs,
		tags:     d.Tags,
		mentions: d.Mentions,
		emitter:  emitter,
		cfg:      d.Config,
		sf:       &singleflight.Group{},
		now:      time.Now,
	}
}

var validSorts = []interface{}{
	model.SortRecent, model.SortTrending, model.SortMostReplies, model.SortMostViews, model.SortActive,
}

// FetchByTab trending / recent / following 列表，带短 TTL 缓存
func (s *ThreadService) FetchByTab(ctx context.Context, tab string, page, limit int, forumID *int64, viewer *model.Viewer) (*model.TabPage, error) {
	if tab == "" {
		tab = model.TabRecent
	}
	if err := validation.Validate(tab, validation.In(model.TabTrending, model.TabRecent, model.TabFollowing)); err != nil {
		return nil, apperr.Validationf("tab: %v", err)
	}
	page, limit = util.ClampPage(page, limit, s.cfg.DefaultLimit, s.cfg.MaxLimit)

	var viewerID *int64
	if viewer != nil {
		viewerID = &viewer.ID
	}
	if tab == model.TabFollowing && viewerID == nil {
		return &model.TabPage{Items: []*model.ThreadView{}, Page: page}, nil
	}

	key := s.tabs.Key(TabKey{Tab: tab, ForumID: forumID, Page: page, Limit: limit, ViewerID: viewerID})
	if cached, ok := s.tabs.Get(ctx, tab, key); ok {
		return decoratePage(cached, viewer), nil
	}

	// 代数进入 singleflight key，失效后新的调用方不会加入失效前的查询
	gen := s.tabs.Generation()
	v, err := coalesce(ctx, s.sf, fmt.Sprintf("%s#%d", key, gen), func(ctx context.Context) (interface{}, error) {
		filters := model.ThreadFilters{
			ForumID: forumID,
			Sort:    model.SortRecent,
			Page:    page,
			Limit:   limit,
		}
		switch tab {
		case model.TabTrending:
			filters.Sort = model.SortTrending
		case model.TabFollowing:
			filters.FollowerID = viewerID
		}

		views, total, err := s.search(ctx, &filters)
		if err != nil {
			return nil, err
		}
		return &model.TabPage{
			Items:   views,
			HasMore: (page-1)*limit+len(views) < total,
			Total:   total,
			Page:    page,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	result := v.(*model.TabPage)
	s.tabs.Set(ctx, tab, key, gen, result)
	return decoratePage(result, viewer), nil
}

// Search searchThreads：过滤、排序、分页
func (s *ThreadService) Search(ctx context.Context, filters model.ThreadFilters) (*model.SearchResult, error) {
	if filters.Sort == "" {
		filters.Sort = model.SortRecent
	}
	err := validation.ValidateStruct(&filters,
		validation.Field(&filters.Sort, validation.In(validSorts...)),
		validation.Field(&filters.Search, validation.RuneLength(0, 200)),
		validation.Field(&filters.Tag, validation.RuneLength(0, maxTagSlugLen)),
	)
	if err != nil {
		return nil, apperr.Validation(err)
	}
	filters.Page, filters.Limit = util.ClampPage(filters.Page, filters.Limit, s.cfg.DefaultLimit, s.cfg.MaxLimit)

	views, total, err := s.search(ctx, &filters)
	if err != nil {
		return nil, err
	}
	return &model.SearchResult{
		Threads:    views,
		Total:      total,
		Page:       filters.Page,
		TotalPages: util.TotalPages(total, filters.Limit),
	}, nil
}

// search 展开版块子树后并发执行列表和计数查询，再批量补全
func (s *ThreadService) search(ctx context.Context, f *model.ThreadFilters) ([]*model.ThreadView, int, error) {
	q := &model.ThreadQuery{
		Search:      f.Search,
		UserID:      f.UserID,
		TagSlug:     f.Tag,
		FollowerID:  f.FollowerID,
		Sort:        f.Sort,
		StickyFirst: f.StickyFirst,
		Offset:      (f.Page - 1) * f.Limit,
		Limit:       f.Limit,
	}

	if f.ForumID != nil {
		descendants, err := s.forums.ExpandDescendants(ctx, *f.ForumID)
		if err != nil {
			return nil, 0, err
		}
		q.NodeIDs = append([]int64{*f.ForumID}, descendants...)
	}

	var (
		threads []*model.Thread
		total   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		threads, err = s.threads.Search(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.threads.Count(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("query threads: %w", err)
	}

	views, err := s.enricher.Enrich(ctx, threads)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// GetByID 主题详情，不存在返回 nil
func (s *ThreadService) GetByID(ctx context.Context, id int64, viewer *model.Viewer) (*model.ThreadView, error) {
	v, err := coalesce(ctx, s.sf, fmt.Sprintf("thread:%d", id), func(ctx context.Context) (interface{}, error) {
		return s.threads.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, v.(*model.Thread), viewer)
}

// GetBySlug forumID 为空时返回最新创建的匹配主题
func (s *ThreadService) GetBySlug(ctx context.Context, slug string, forumID *int64, viewer *model.Viewer) (*model.ThreadView, error) {
	thread, err := s.threads.GetBySlug(ctx, slug, forumID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, thread, viewer)
}

func (s *ThreadService) detail(ctx context.Context, thread *model.Thread, viewer *model.Viewer) (*model.ThreadView, error) {
	if thread == nil {
		return nil, nil
	}
	views, err := s.enricher.Enrich(ctx, []*model.Thread{thread})
	if err != nil {
		return nil, err
	}
	view := views[0]

	tags, err := s.tags.ForThread(ctx, thread.ID)
	if err != nil {
		return nil, fmt.Errorf("tags for thread %d: %w", thread.ID, err)
	}
	view.Tags = tags
	view.Permissions = viewer.PermissionsFor(&view.Thread)
	return view, nil
}

// IncrementViewCount 失败只记录，不影响请求
func (s *ThreadService) IncrementViewCount(ctx context.Context, id int64) {
	if err := s.threads.IncViewCount(ctx, id); err != nil {
		metrics.CounterUpdateFailures.WithLabelValues("view_count").Inc()
		logger.Warn("increment view count failed", logger.Int64("thread_id", id), logger.ErrorField(err))
	}
}

// UpdatePostCount 失败只记录，不影响请求
func (s *ThreadService) UpdatePostCount(ctx context.Context, id int64) {
	if err := s.threads.SyncPostCount(ctx, id); err != nil {
		metrics.CounterUpdateFailures.WithLabelValues("post_count").Inc()
		logger.Warn("update post count failed", logger.Int64("thread_id", id), logger.ErrorField(err))
	}
}

// UpdateSolvedStatus solvingPostID 为 nil 时取消已解决
func (s *ThreadService) UpdateSolvedStatus(ctx context.Context, in model.SolvedInput) error {
	thread, err := s.threads.GetByID(ctx, in.ThreadID)
	if err != nil {
		return err
	}
	if thread == nil {
		return apperr.ErrThreadNotFound
	}

	if in.SolvingPostID != nil {
		ok, err := s.posts.BelongsToThread(ctx, *in.SolvingPostID, in.ThreadID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Validationf("post %d does not belong to thread %d", *in.SolvingPostID, in.ThreadID)
		}
	}

	if err := s.threads.UpdateSolved(ctx, in.ThreadID, in.SolvingPostID, s.now().UTC()); err != nil {
		return err
	}

	if err := s.tabs.Invalidate(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("tab cache invalidate failed", logger.Int64("thread_id", in.ThreadID), logger.ErrorField(err))
	}
	return nil
}

// FlushCache 清空 tab 缓存和 zone memo
func (s *ThreadService) FlushCache(ctx context.Context) error {
	if err := s.tabs.Invalidate(ctx); err != nil {
		return err
	}
	return s.zones.Flush(ctx)
}

// decoratePage 复制一份再渲染权限，不修改共享的缓存对象
func decoratePage(p *model.TabPage, viewer *model.Viewer) *model.TabPage {
	if viewer == nil {
		return p
	}
	out := *p
	out.Items = make([]*model.ThreadView, len(p.Items))
	for i, item := range p.Items {
		cp := *item
		cp.Permissions = viewer.PermissionsFor(&cp.Thread)
		out.Items[i] = &cp
	}
	return &out
}
