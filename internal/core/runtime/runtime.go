package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"forum_go/internal/core/logger"
	"forum_go/internal/model"
	"forum_go/internal/service"
)

// Runtime 运行时数据管理：版块列表、版块树、zone 预热
type Runtime struct {
	forumList []*model.ForumNode
	forumTree []*model.ForumTreeNode
	primed    int
	mu        sync.RWMutex
	loadedAt  time.Time
	forumSvc  *service.ForumService
}

// Singleton instance
var rt *Runtime
var once sync.Once

// RuntimeConfig Runtime 配置
type RuntimeConfig struct {
	ForumSvc *service.ForumService
}

// Init 初始化 Runtime
func Init(ctx context.Context, cfg *RuntimeConfig) error {
	var initErr error
	once.Do(func() {
		rt = New(cfg)
		initErr = rt.warmup(ctx)
	})
	return initErr
}

// New 创建未预热的 Runtime（测试或多实例场景）
func New(cfg *RuntimeConfig) *Runtime {
	return &Runtime{forumSvc: cfg.ForumSvc}
}

// Get 获取 Runtime 实例
func Get() *Runtime {
	return rt
}

// warmup 加载整棵版块树并预解析每个节点的 zone
func (r *Runtime) warmup(ctx context.Context) error {
	start := time.Now()
	logger.Info("runtime warmup started")

	nodes, err := r.forumSvc.All(ctx)
	if err != nil {
		logger.Error("warmup forum list failed", logger.ErrorField(err))
		return fmt.Errorf("load forum hierarchy: %w", err)
	}
	tree := service.BuildTree(nodes)
	primed := r.forumSvc.PrimeZones(ctx, nodes)

	r.mu.Lock()
	r.forumList = nodes
	r.forumTree = tree
	r.primed = primed
	r.loadedAt = time.Now()
	r.mu.Unlock()

	logger.Info("runtime warmup completed",
		logger.Int("forums", len(nodes)),
		logger.Int("roots", len(tree)),
		logger.Int("zones_primed", primed),
		logger.Duration("duration", time.Since(start)))
	return nil
}

// Reload 重新加载所有运行时数据，层级变更事件后调用
func (r *Runtime) Reload(ctx context.Context) error {
	return r.warmup(ctx)
}

// GetForumList 获取 Forum 列表
func (r *Runtime) GetForumList() []*model.ForumNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.forumList
}

// GetForumTree 获取 Forum 树
func (r *Runtime) GetForumTree() []*model.ForumTreeNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.forumTree
}

// GetLoadedAt 获取加载时间
func (r *Runtime) GetLoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt
}

// Status 返回运行时状态
func (r *Runtime) Status() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]interface{}{
		"forum_count":  len(r.forumList),
		"forum_tree":   len(r.forumTree),
		"zones_primed": r.primed,
		"loaded_at":    r.loadedAt.Format("2006-01-02 15:04:05"),
	}
}

// WarmUpLog 预热日志
func WarmUpLog() string {
	if rt == nil {
		return "runtime not initialized"
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return fmt.Sprintf("Forum: %d, Zones primed: %d, Loaded: %s",
		len(rt.forumList), rt.primed, rt.loadedAt.Format("2006-01-02 15:04:05"))
}
