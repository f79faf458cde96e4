package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"forum_go/internal/core/config"
	"forum_go/internal/core/logger"
	"forum_go/internal/core/mq"
	"forum_go/internal/model"
	"forum_go/internal/pkg/pool"
	"forum_go/internal/repository"

	"golang.org/x/sync/singleflight"
)

// ForumService 版块树业务服务
type ForumService struct {
	repo     repository.ForumRepository
	cache    pool.Store
	zones    *ZoneResolver
	tabs     *TabCache
	sf       *singleflight.Group
	ttl      time.Duration
	maxDepth int
}

// NewForumService 创建 ForumService 实例
func NewForumService(repo repository.ForumRepository, cache pool.Store, zones *ZoneResolver, tabs *TabCache, cfg *config.Config) *ForumService {
	return &ForumService{
		repo:     repo,
		cache:    cache,
		zones:    zones,
		tabs:     tabs,
		sf:       &singleflight.Group{},
		ttl:      time.Duration(cfg.Cache.L2TTL) * time.Second,
		maxDepth: cfg.Hierarchy.MaxDepth,
	}
}

func forumKey(id int64) string {
	return fmt.Sprintf("forum:%d", id)
}

// Get 获取单个节点，不存在返回 nil
func (s *ForumService) Get(ctx context.Context, id int64) (*model.ForumNode, error) {
	key := forumKey(id)

	// Cache
	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var node model.ForumNode
		if err := json.Unmarshal(data, &node); err == nil {
			return &node, nil
		}
	}

	// SingleFlight + DB
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		node, err := s.repo.GetByID(ctx, id)
		if err != nil || node == nil {
			return node, err
		}
		if data, err := json.Marshal(node); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
				logger.Warn("forum cache set failed", logger.Int64("id", id), logger.ErrorField(err))
			}
		}
		return node, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.ForumNode), nil
}

// All 获取全部节点
func (s *ForumService) All(ctx context.Context) ([]*model.ForumNode, error) {
	return s.repo.GetAll(ctx)
}

// ExpandDescendants 所有子孙节点 ID（不含自身），一次查询
func (s *ForumService) ExpandDescendants(ctx context.Context, id int64) ([]int64, error) {
	ids, err := s.repo.GetDescendantIDs(ctx, id, s.maxDepth)
	if err != nil {
		return nil, fmt.Errorf("expand descendants of %d: %w", id, err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// ResolveZone 节点所属 zone
func (s *ForumService) ResolveZone(ctx context.Context, id int64) (*model.ZoneInfo, error) {
	return s.zones.ResolveZone(ctx, id)
}

// GetTree 获取论坛树
func (s *ForumService) GetTree(ctx context.Context) ([]*model.ForumTreeNode, error) {
	nodes, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTree(nodes), nil
}

// BuildTree 按 parent_id 组装树，返回所有 zone；父节点缺失的节点被丢弃
func BuildTree(nodes []*model.ForumNode) []*model.ForumTreeNode {
	nodeMap := make(map[int64]*model.ForumTreeNode, len(nodes))
	for _, n := range nodes {
		nodeMap[n.ID] = &model.ForumTreeNode{
			ID:         n.ID,
			Name:       n.Name,
			Slug:       n.Slug,
			Type:       n.Type,
			ColorTheme: n.ColorTheme,
			SortOrder:  n.SortOrder,
		}
	}

	roots := make([]*model.ForumTreeNode, 0)
	for _, n := range nodes {
		node := nodeMap[n.ID]
		if n.IsZone() {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodeMap[*n.ParentID]; ok && parent != node {
			parent.Children = append(parent.Children, node)
		}
	}
	return roots
}

// PrimeZones 预热 zone memo
func (s *ForumService) PrimeZones(ctx context.Context, nodes []*model.ForumNode) int {
	return s.zones.Prime(ctx, nodes)
}

// HandleHierarchyEvent 版块树变更：失效节点缓存、子树 zone memo 和 tab 缓存
func (s *ForumService) HandleHierarchyEvent(ctx context.Context, routingKey string, body []byte) error {
	var ev mq.HierarchyEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		// 无法解析的消息重试也没用，丢弃
		logger.Warn("drop malformed hierarchy event", logger.String("routing_key", routingKey), logger.ErrorField(err))
		return nil
	}

	logger.Info("hierarchy changed",
		logger.String("routing_key", routingKey),
		logger.Int64("node_id", ev.NodeID),
		logger.String("action", ev.Action))

	if err := s.cache.Delete(ctx, forumKey(ev.NodeID)); err != nil {
		return err
	}

	if ev.Action == "deleted" {
		// 子节点已无法从该节点展开
		if err := s.zones.Flush(ctx); err != nil {
			return err
		}
	} else if err := s.zones.InvalidateSubtree(ctx, ev.NodeID); err != nil {
		return err
	}

	return s.tabs.Invalidate(ctx)
}
