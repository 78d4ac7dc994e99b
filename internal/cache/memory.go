package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

// MemoryPageCache 单进程页面缓存，开发模式使用
type MemoryPageCache struct {
	store *ristretto.Cache[string, []byte]
	group singleflight.Group
	counters
}

// NewMemoryPageCache maxBytes 为缓存页面总字节上限
func NewMemoryPageCache(maxBytes int64) (*MemoryPageCache, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 100_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory page cache: %w", err)
	}
	return &MemoryPageCache{store: store}, nil
}

func (c *MemoryPageCache) GetOrRender(ctx context.Context, key string, ttl time.Duration, render RenderFunc) ([]byte, error) {
	if data, ok := c.store.Get(key); ok {
		c.hits.Add(1)
		return data, nil
	}
	c.misses.Add(1)

	return coalesce(ctx, &c.group, key, func(ctx context.Context) ([]byte, error) {
		c.renders.Add(1)
		page, err := render(ctx)
		if err != nil {
			return nil, err
		}
		if ttl > 0 {
			c.store.SetWithTTL(key, page, int64(len(page)), ttl)
			c.store.Wait()
		}
		return page, nil
	})
}

func (c *MemoryPageCache) Invalidate(_ context.Context, key string) error {
	c.store.Del(key)
	return nil
}

func (c *MemoryPageCache) ClearAll(_ context.Context) error {
	c.store.Clear()
	return nil
}

func (c *MemoryPageCache) Stats() Stats { return c.snapshot() }

// Close 释放 ristretto 的后台协程
func (c *MemoryPageCache) Close() { c.store.Close() }
