package pool

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
)

// Store 带 TTL 的 KV 缓存后端
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// 过期时间头，8 字节 unix nano
const envelopeSize = 8

// BigCache bigcache包装器
// bigcache 只有全局 LifeWindow，单条 TTL 通过值前缀的过期时间实现
type BigCache struct {
	cache *bigcache.BigCache
	now   func() time.Time
}

// NewBigCache 创建bigcache实例
// capacityMB: 缓存容量（MB）
// maxTTL: 单条最长存活时间
func NewBigCache(capacityMB int, maxTTL time.Duration) (*BigCache, error) {
	config := bigcache.DefaultConfig(maxTTL)
	config.Shards = 64
	config.HardMaxCacheSize = capacityMB
	config.MaxEntriesInWindow = 10000
	config.MaxEntrySize = 4096
	config.CleanWindow = time.Minute
	config.Verbose = false

	cache, err := bigcache.New(context.Background(), config)
	if err != nil {
		return nil, err
	}

	return &BigCache{cache: cache, now: time.Now}, nil
}

// Get 过期条目视为未命中并顺带删除
func (c *BigCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(data) < envelopeSize {
		_ = c.cache.Delete(key)
		return nil, false, nil
	}

	expireAt := int64(binary.BigEndian.Uint64(data[:envelopeSize]))
	if expireAt > 0 && c.now().UnixNano() >= expireAt {
		_ = c.cache.Delete(key)
		return nil, false, nil
	}
	return data[envelopeSize:], true, nil
}

// Set ttl <= 0 表示仅受全局 LifeWindow 约束
func (c *BigCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	buf := make([]byte, envelopeSize+len(value))
	var expireAt int64
	if ttl > 0 {
		expireAt = c.now().Add(ttl).UnixNano()
	}
	binary.BigEndian.PutUint64(buf[:envelopeSize], uint64(expireAt))
	copy(buf[envelopeSize:], value)
	return c.cache.Set(key, buf)
}

// Delete 删除键
func (c *BigCache) Delete(ctx context.Context, key string) error {
	err := c.cache.Delete(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}

// DeletePrefix 遍历全部条目删除匹配前缀的键
func (c *BigCache) DeletePrefix(ctx context.Context, prefix string) error {
	var keys []string
	it := c.cache.Iterator()
	for it.SetNext() {
		entry, err := it.Value()
		if err != nil {
			continue
		}
		if strings.HasPrefix(entry.Key(), prefix) {
			keys = append(keys, entry.Key())
		}
	}

	for _, k := range keys {
		if err := c.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Len 条目数
func (c *BigCache) Len() int {
	return c.cache.Len()
}

// Flush 清空所有缓存
func (c *BigCache) Flush() error {
	return c.cache.Reset()
}

// Close 关闭缓存
func (c *BigCache) Close() error {
	return c.cache.Close()
}
