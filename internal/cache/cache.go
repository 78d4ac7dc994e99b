// Package cache 整页响应缓存。
//
// 缓存键只包含路由和页码，不区分访客；过期前的写入不会让缓存失效，
// 需要时显式调用 Invalidate / ClearAll。
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// renderTimeout 单次渲染的上限，与发起请求的客户端无关
const renderTimeout = 30 * time.Second

// RenderFunc 生成页面字节，只在未命中时调用
type RenderFunc func(ctx context.Context) ([]byte, error)

// PageCache 页面缓存。实现必须并发安全。
type PageCache interface {
	// GetOrRender 命中直接返回；未命中调用 render 并按 ttl 保存。
	// render 的错误原样返回且不缓存。ttl <= 0 表示不缓存。
	GetOrRender(ctx context.Context, key string, ttl time.Duration, render RenderFunc) ([]byte, error)
	Invalidate(ctx context.Context, key string) error
	// ClearAll 清空本缓存命名空间下的所有页面
	ClearAll(ctx context.Context) error
	Stats() Stats
}

// Stats 命中统计
type Stats struct {
	Hits    int64
	Misses  int64
	Renders int64
}

// RouteKey 页面缓存键：路由 + 页码
func RouteKey(path string, page int) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s?page=%d", path, page)
}

type counters struct {
	hits    atomic.Int64
	misses  atomic.Int64
	renders atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Renders: c.renders.Load(),
	}
}

// coalesce 同一个键的并发未命中只执行一次 fn。
// fn 在脱离调用方取消的上下文中运行；每个调用方只按自己的 ctx 放弃等待。
func coalesce(ctx context.Context, group *singleflight.Group, key string, fn RenderFunc) ([]byte, error) {
	ch := group.DoChan(key, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renderTimeout)
		defer cancel()
		return fn(rctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// New 按配置选择后端；redis 后端需要传入客户端
func New(backend, prefix string, client redis.UniversalClient) (PageCache, error) {
	switch backend {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("cache: redis backend requires a client")
		}
		return NewRedisPageCache(client, prefix), nil
	case "memory", "":
		return NewMemoryPageCache(0)
	default:
		return nil, fmt.Errorf("cache: unsupported backend %q", backend)
	}
}
