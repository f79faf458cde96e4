package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"forum_go/internal/core/config"
	"forum_go/internal/core/logger"
	"forum_go/internal/model"
	"forum_go/internal/pkg/apperr"
	"forum_go/internal/pkg/pool"
	"forum_go/internal/repository"

	"golang.org/x/sync/singleflight"
)

const zoneKeyPrefix = "zone:"

func zoneKey(nodeID int64) string {
	return zoneKeyPrefix + strconv.FormatInt(nodeID, 10)
}

type nodeLookup func(ctx context.Context, id int64) (*model.ForumNode, error)

// ZoneResolver 沿 parent 链找到根节点（zone），结果短期缓存
type ZoneResolver struct {
	repo     repository.ForumRepository
	memo     pool.Store
	ttl      time.Duration
	maxDepth int
	sf       singleflight.Group
}

// NewZoneResolver 创建 ZoneResolver
func NewZoneResolver(repo repository.ForumRepository, memo pool.Store, cacheCfg *config.CacheConfig, hierCfg *config.HierarchyConfig) *ZoneResolver {
	return &ZoneResolver{
		repo:     repo,
		memo:     memo,
		ttl:      cacheCfg.ZoneMemoTTL(),
		maxDepth: hierCfg.MaxDepth,
	}
}

// ResolveZone 节点不存在（或父链断开）返回 nil, nil
func (z *ZoneResolver) ResolveZone(ctx context.Context, nodeID int64) (*model.ZoneInfo, error) {
	key := zoneKey(nodeID)

	if data, ok, err := z.memo.Get(ctx, key); err == nil && ok {
		var zone model.ZoneInfo
		if err := json.Unmarshal(data, &zone); err == nil {
			return &zone, nil
		}
	}

	v, err := coalesce(ctx, &z.sf, key, func(ctx context.Context) (interface{}, error) {
		return z.walk(ctx, nodeID, z.repo.GetByID)
	})
	if err != nil {
		return nil, err
	}
	zone := v.(*model.ZoneInfo)
	if zone == nil {
		return nil, nil
	}

	z.remember(ctx, nodeID, zone)
	return zone, nil
}

// walk 最多跟随 maxDepth 次 parent 链接，超出或成环返回 ErrHierarchyTooDeep
func (z *ZoneResolver) walk(ctx context.Context, nodeID int64, lookup nodeLookup) (*model.ZoneInfo, error) {
	visited := make(map[int64]struct{}, z.maxDepth+1)
	id := nodeID
	for hops := 0; ; hops++ {
		if hops > z.maxDepth {
			return nil, fmt.Errorf("%w: node %d exceeds %d ancestors", apperr.ErrHierarchyTooDeep, nodeID, z.maxDepth)
		}
		if _, seen := visited[id]; seen {
			return nil, fmt.Errorf("%w: cycle at node %d while resolving %d", apperr.ErrHierarchyTooDeep, id, nodeID)
		}
		visited[id] = struct{}{}

		node, err := lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		if node == nil {
			return nil, nil
		}
		if node.IsZone() {
			return node.ZoneInfo(), nil
		}
		id = *node.ParentID
	}
}

func (z *ZoneResolver) remember(ctx context.Context, nodeID int64, zone *model.ZoneInfo) {
	data, err := json.Marshal(zone)
	if err != nil {
		return
	}
	if err := z.memo.Set(ctx, zoneKey(nodeID), data, z.ttl); err != nil {
		logger.Warn("zone memo set failed", logger.Int64("node_id", nodeID), logger.ErrorField(err))
	}
}

// Prime 用已加载的整棵树预热 memo，不访问数据库，返回成功解析的节点数
func (z *ZoneResolver) Prime(ctx context.Context, nodes []*model.ForumNode) int {
	byID := make(map[int64]*model.ForumNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	lookup := func(_ context.Context, id int64) (*model.ForumNode, error) {
		return byID[id], nil
	}

	resolved := 0
	for _, n := range nodes {
		zone, err := z.walk(ctx, n.ID, lookup)
		if err != nil {
			logger.Warn("zone prime failed", logger.Int64("node_id", n.ID), logger.ErrorField(err))
			continue
		}
		if zone == nil {
			continue
		}
		z.remember(ctx, n.ID, zone)
		resolved++
	}
	return resolved
}

// Invalidate 删除单个节点的 memo
func (z *ZoneResolver) Invalidate(ctx context.Context, nodeID int64) error {
	return z.memo.Delete(ctx, zoneKey(nodeID))
}

// InvalidateSubtree 删除节点及其所有子孙的 memo
func (z *ZoneResolver) InvalidateSubtree(ctx context.Context, nodeID int64) error {
	ids, err := z.repo.GetDescendantIDs(ctx, nodeID, z.maxDepth)
	if err != nil {
		return err
	}
	for _, id := range append([]int64{nodeID}, ids...) {
		if err := z.Invalidate(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Flush 清空全部 memo
func (z *ZoneResolver) Flush(ctx context.Context) error {
	return z.memo.DeletePrefix(ctx, zoneKeyPrefix)
}
