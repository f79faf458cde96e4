package service

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// sharedCallTimeout 合并调用自身的超时，与请求超时一致
const sharedCallTimeout = 15 * time.Second

// coalesce 合并同 key 的并发调用
// 共享调用运行在脱离调用方取消的 ctx 上，每个调用方只按自己的 ctx 放弃等待
func coalesce(ctx context.Context, g *singleflight.Group, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := g.DoChan(key, func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		return fn(sctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.Val, r.Err
	}
}
