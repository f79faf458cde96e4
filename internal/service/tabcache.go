package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"forum_go/internal/core/config"
	"forum_go/internal/core/logger"
	"forum_go/internal/core/metrics"
	"forum_go/internal/model"
	"forum_go/internal/pkg/pool"
)

// TabCachePrefix 所有 tab 缓存键的前缀，写入后按前缀整体失效
const TabCachePrefix = "thread_tab"

// TabKey 缓存键元组
type TabKey struct {
	Tab      string
	ForumID  *int64
	Page     int
	Limit    int
	ViewerID *int64
}

// TabCache 短 TTL 的 tab 列表缓存
type TabCache struct {
	store   pool.Store
	ttl     config.TabTTLConfig
	version string
	gen     atomic.Uint64
}

// NewTabCache 创建 TabCache
func NewTabCache(store pool.Store, cfg *config.CacheConfig) *TabCache {
	return &TabCache{
		store:   store,
		ttl:     cfg.TabTTL,
		version: cfg.SchemaVersion,
	}
}

// Key thread_tab:{tab}:{forum|all}:{page}:{limit}:{viewer|anon}:{version}
func (c *TabCache) Key(k TabKey) string {
	forum := "all"
	if k.ForumID != nil {
		forum = fmt.Sprintf("%d", *k.ForumID)
	}
	viewer := "anon"
	if k.ViewerID != nil {
		viewer = fmt.Sprintf("%d", *k.ViewerID)
	}
	return fmt.Sprintf("%s:%s:%s:%d:%d:%s:%s", TabCachePrefix, k.Tab, forum, k.Page, k.Limit, viewer, c.version)
}

// TTL 按 tab 取过期时间
func (c *TabCache) TTL(tab string) time.Duration {
	return c.ttl.TTLFor(tab)
}

// Get 反序列化失败视为未命中
func (c *TabCache) Get(ctx context.Context, tab, key string) (*model.TabPage, bool) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		metrics.TabCacheRequests.WithLabelValues(tab, "error").Inc()
		logger.Warn("tab cache get failed", logger.String("key", key), logger.ErrorField(err))
		return nil, false
	}
	if !ok {
		metrics.TabCacheRequests.WithLabelValues(tab, "miss").Inc()
		return nil, false
	}

	var page model.TabPage
	if err := json.Unmarshal(data, &page); err != nil {
		metrics.TabCacheRequests.WithLabelValues(tab, "miss").Inc()
		logger.Warn("tab cache decode failed", logger.String("key", key), logger.ErrorField(err))
		return nil, false
	}
	metrics.TabCacheRequests.WithLabelValues(tab, "hit").Inc()
	return &page, true
}

// Generation 每次 Invalidate 加一；查询前取值，写入时用于丢弃失效前读到的数据
func (c *TabCache) Generation() uint64 {
	return c.gen.Load()
}

// Set ctx 已取消或超时时不写入；gen 与当前代不一致时不写入
// 写入期间发生失效则删除刚写入的键
func (c *TabCache) Set(ctx context.Context, tab, key string, gen uint64, page *model.TabPage) {
	if ctx.Err() != nil || c.gen.Load() != gen {
		return
	}
	data, err := json.Marshal(page)
	if err != nil {
		logger.Warn("tab cache encode failed", logger.String("key", key), logger.ErrorField(err))
		return
	}
	if err := c.store.Set(ctx, key, data, c.TTL(tab)); err != nil {
		logger.Warn("tab cache set failed", logger.String("key", key), logger.ErrorField(err))
		return
	}
	if c.gen.Load() != gen {
		if err := c.store.Delete(context.WithoutCancel(ctx), key); err != nil {
			logger.Warn("tab cache stale delete failed", logger.String("key", key), logger.ErrorField(err))
		}
	}
}

// Invalidate 删除所有 tab 缓存，先推进代数
func (c *TabCache) Invalidate(ctx context.Context) error {
	c.gen.Add(1)
	return c.store.DeletePrefix(ctx, TabCachePrefix+":")
}
