package service

import (
	"context"
	"fmt"

	"forum_go/internal/core/logger"
	"forum_go/internal/core/metrics"
	"forum_go/internal/model"
	"forum_go/internal/pkg/apperr"
	"forum_go/internal/repository"

	"golang.org/x/sync/errgroup"
)

// Enricher 批量补全作者、版块、zone、摘要
// 查询次数与行数无关：users 1 次，nodes 1 次，parents 最多 1 次，excerpts 1 次
type Enricher struct {
	users      repository.UserRepository
	forums     repository.ForumRepository
	posts      repository.PostRepository
	zones      *ZoneResolver
	excerptLen int
}

// NewEnricher 创建 Enricher
func NewEnricher(users repository.UserRepository, forums repository.ForumRepository, posts repository.PostRepository, zones *ZoneResolver, excerptLen int) *Enricher {
	return &Enricher{
		users:      users,
		forums:     forums,
		posts:      posts,
		zones:      zones,
		excerptLen: excerptLen,
	}
}

// Enrich 任一批量查询失败则整体失败，不返回部分结果
func (e *Enricher) Enrich(ctx context.Context, threads []*model.Thread) ([]*model.ThreadView, error) {
	views := make([]*model.ThreadView, 0, len(threads))
	if len(threads) == 0 {
		return views, nil
	}

	userIDs := distinct(threads, func(t *model.Thread) int64 { return t.UserID })
	nodeIDs := distinct(threads, func(t *model.Thread) int64 { return t.StructureID })
	threadIDs := make([]int64, 0, len(threads))
	for _, t := range threads {
		threadIDs = append(threadIDs, t.ID)
	}

	var (
		users    map[int64]*model.User
		nodes    map[int64]*model.ForumNode
		parents  map[int64]*model.ForumNode
		excerpts map[int64]string
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		metrics.EnrichmentQueries.WithLabelValues("users").Inc()
		list, err := e.users.GetByIDs(gctx, userIDs)
		if err != nil {
			return fmt.Errorf("users: %w", err)
		}
		users = make(map[int64]*model.User, len(list))
		for _, u := range list {
			users[u.ID] = u
		}
		return nil
	})

	g.Go(func() error {
		metrics.EnrichmentQueries.WithLabelValues("nodes").Inc()
		list, err := e.forums.GetByIDs(gctx, nodeIDs)
		if err != nil {
			return fmt.Errorf("nodes: %w", err)
		}
		nodes = indexNodes(list)

		var parentIDs []int64
		seen := make(map[int64]struct{})
		for _, n := range list {
			if n.IsZone() {
				continue
			}
			pid := *n.ParentID
			if _, ok := nodes[pid]; ok {
				continue
			}
			if _, ok := seen[pid]; ok {
				continue
			}
			seen[pid] = struct{}{}
			parentIDs = append(parentIDs, pid)
		}
		if len(parentIDs) == 0 {
			parents = map[int64]*model.ForumNode{}
			return nil
		}

		metrics.EnrichmentQueries.WithLabelValues("parents").Inc()
		plist, err := e.forums.GetByIDs(gctx, parentIDs)
		if err != nil {
			return fmt.Errorf("parent nodes: %w", err)
		}
		parents = indexNodes(plist)
		return nil
	})

	g.Go(func() error {
		metrics.EnrichmentQueries.WithLabelValues("excerpts").Inc()
		m, err := e.posts.FirstPostContents(gctx, threadIDs)
		if err != nil {
			return fmt.Errorf("excerpts: %w", err)
		}
		excerpts = m
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", apperr.ErrEnrichment, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fallback := make(map[int64]*model.ZoneInfo)
	for _, t := range threads {
		view := &model.ThreadView{Thread: *t}
		if u, ok := users[t.UserID]; ok {
			view.Author = u.Summary()
		}

		if node, ok := nodes[t.StructureID]; ok {
			view.Category = node.Summary()
			zone, err := e.zoneFor(ctx, node, nodes, parents, fallback)
			if err != nil {
				return nil, fmt.Errorf("%w: zone for node %d: %w", apperr.ErrEnrichment, node.ID, err)
			}
			view.Zone = zone
		}

		view.Excerpt = Excerpt(excerpts[t.ID], e.excerptLen)
		views = append(views, view)
	}
	return views, nil
}

// zoneFor 先用批量结果，父节点不是根时退回单点 ResolveZone
func (e *Enricher) zoneFor(ctx context.Context, node *model.ForumNode, nodes, parents map[int64]*model.ForumNode, fallback map[int64]*model.ZoneInfo) (*model.ZoneInfo, error) {
	if node.IsZone() {
		return node.ZoneInfo(), nil
	}

	pid := *node.ParentID
	parent, ok := nodes[pid]
	if !ok {
		parent, ok = parents[pid]
	}
	if ok && parent.IsZone() {
		return parent.ZoneInfo(), nil
	}

	if zone, ok := fallback[node.ID]; ok {
		return zone, nil
	}

	metrics.ZoneFallbacks.Inc()
	logger.Warn("zone not found in batch, resolving directly",
		logger.Int64("node_id", node.ID),
		logger.Int64("parent_id", pid))

	zone, err := e.zones.ResolveZone(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	fallback[node.ID] = zone
	return zone, nil
}

func indexNodes(list []*model.ForumNode) map[int64]*model.ForumNode {
	m := make(map[int64]*model.ForumNode, len(list))
	for _, n := range list {
		m[n.ID] = n
	}
	return m
}

func distinct(threads []*model.Thread, key func(*model.Thread) int64) []int64 {
	seen := make(map[int64]struct{}, len(threads))
	out := make([]int64, 0, len(threads))
	for _, t := range threads {
		k := key(t)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
