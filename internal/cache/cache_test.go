package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T) (*RedisPageCache, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisPageCache(client, "yatube:page:"), mr, client
}

func newMemoryCache(t *testing.T) *MemoryPageCache {
	t.Helper()
	c, err := NewMemoryPageCache(1 << 20)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

// counting 返回一个每次调用输出不同内容的 render
func counting() (RenderFunc, *atomic.Int64) {
	var n atomic.Int64
	return func(context.Context) ([]byte, error) {
		v := n.Add(1)
		return []byte(fmt.Sprintf("render-%d", v)), nil
	}, &n
}

func backends(t *testing.T) map[string]PageCache {
	rc, _, _ := newRedisCache(t)
	return map[string]PageCache{
		"redis":  rc,
		"memory": newMemoryCache(t),
	}
}

func TestGetOrRender_HitWithinTTL(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			render, calls := counting()

			first, err := c.GetOrRender(ctx, RouteKey("/", 1), time.Minute, render)
			require.NoError(t, err)
			second, err := c.GetOrRender(ctx, RouteKey("/", 1), time.Minute, render)
			require.NoError(t, err)

			assert.Equal(t, "render-1", string(first))
			assert.Equal(t, first, second)
			assert.Equal(t, int64(1), calls.Load())
			assert.Equal(t, Stats{Hits: 1, Misses: 1, Renders: 1}, c.Stats())

			other, err := c.GetOrRender(ctx, RouteKey("/", 2), time.Minute, render)
			require.NoError(t, err)
			assert.Equal(t, "render-2", string(other), "pages are cached independently")
		})
	}
}

func TestInvalidateAndClearAll(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			render, _ := counting()
			k1, k2 := RouteKey("/", 1), RouteKey("/", 2)

			_, err := c.GetOrRender(ctx, k1, time.Minute, render)
			require.NoError(t, err)
			_, err = c.GetOrRender(ctx, k2, time.Minute, render)
			require.NoError(t, err)

			require.NoError(t, c.Invalidate(ctx, k1))
			got, err := c.GetOrRender(ctx, k1, time.Minute, render)
			require.NoError(t, err)
			assert.Equal(t, "render-3", string(got))

			got, err = c.GetOrRender(ctx, k2, time.Minute, render)
			require.NoError(t, err)
			assert.Equal(t, "render-2", string(got), "invalidate touches only its key")

			require.NoError(t, c.ClearAll(ctx))
			got, err = c.GetOrRender(ctx, k2, time.Minute, render)
			require.NoError(t, err)
			assert.Equal(t, "render-4", string(got))
		})
	}
}

func TestRenderErrorNotCached(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			boom := errors.New("boom")
			_, err := c.GetOrRender(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
				return nil, boom
			})
			require.ErrorIs(t, err, boom)

			got, err := c.GetOrRender(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
				return []byte("ok"), nil
			})
			require.NoError(t, err)
			assert.Equal(t, "ok", string(got))
		})
	}
}

func TestRedisPageCache_TTLExpiry(t *testing.T) {
	c, mr, _ := newRedisCache(t)
	ctx := context.Background()
	render, calls := counting()

	_, err := c.GetOrRender(ctx, "/?page=1", 20*time.Second, render)
	require.NoError(t, err)
	assert.True(t, mr.Exists("yatube:page:/?page=1"))

	mr.FastForward(19 * time.Second)
	got, err := c.GetOrRender(ctx, "/?page=1", 20*time.Second, render)
	require.NoError(t, err)
	assert.Equal(t, "render-1", string(got))

	mr.FastForward(2 * time.Second)
	got, err = c.GetOrRender(ctx, "/?page=1", 20*time.Second, render)
	require.NoError(t, err)
	assert.Equal(t, "render-2", string(got))
	assert.Equal(t, int64(2), calls.Load())
}

func TestRedisPageCache_ClearAllKeepsForeignKeys(t *testing.T) {
	c, mr, client := newRedisCache(t)
	ctx := context.Background()
	render, _ := counting()

	require.NoError(t, client.Set(ctx, "session:abc", "keep", 0).Err())
	for i := 1; i <= 1200; i++ {
		_, err := c.GetOrRender(ctx, RouteKey("/", i), time.Minute, render)
		require.NoError(t, err)
	}

	require.NoError(t, c.ClearAll(ctx))
	assert.Equal(t, []string{"session:abc"}, mr.Keys())

	got, err := c.GetOrRender(ctx, RouteKey("/", 1), time.Minute, render)
	require.NoError(t, err)
	assert.Equal(t, "render-1201", string(got))
}

func TestRedisPageCache_ReadErrorFallsBackToRender(t *testing.T) {
	c, mr, _ := newRedisCache(t)
	mr.Close()

	got, err := c.GetOrRender(context.Background(), "/?page=1", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(got))
}

func TestMemoryPageCache_TTLExpiry(t *testing.T) {
	c := newMemoryCache(t)
	ctx := context.Background()
	render, calls := counting()

	_, err := c.GetOrRender(ctx, "k", 50*time.Millisecond, render)
	require.NoError(t, err)
	time.Sleep(120 * time.Millisecond)
	got, err := c.GetOrRender(ctx, "k", 50*time.Millisecond, render)
	require.NoError(t, err)
	assert.Equal(t, "render-2", string(got))
	assert.Equal(t, int64(2), calls.Load())
}

func TestConcurrentMissesCollapse(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int64
			release := make(chan struct{})
			render := func(context.Context) ([]byte, error) {
				calls.Add(1)
				<-release
				return []byte("page"), nil
			}

			const workers = 16
			var wg sync.WaitGroup
			wg.Add(workers)
			for i := 0; i < workers; i++ {
				go func() {
					defer wg.Done()
					got, err := c.GetOrRender(context.Background(), "hot", time.Minute, render)
					assert.NoError(t, err)
					assert.Equal(t, "page", string(got))
				}()
			}
			time.Sleep(50 * time.Millisecond)
			close(release)
			wg.Wait()

			assert.LessOrEqual(t, calls.Load(), int64(workers))
			assert.GreaterOrEqual(t, calls.Load(), int64(1))
			assert.Equal(t, int64(workers), c.Stats().Hits+c.Stats().Misses)
		})
	}
}

func TestCanceledCallerDoesNotFailWaiters(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			started := make(chan struct{})
			release := make(chan struct{})
			var once sync.Once
			render := func(ctx context.Context) ([]byte, error) {
				once.Do(func() { close(started) })
				<-release
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return []byte("page"), nil
			}

			firstCtx, cancel := context.WithCancel(context.Background())
			firstErr := make(chan error, 1)
			go func() {
				_, err := c.GetOrRender(firstCtx, "slow", time.Minute, render)
				firstErr <- err
			}()
			<-started

			type result struct {
				page []byte
				err  error
			}
			second := make(chan result, 1)
			go func() {
				page, err := c.GetOrRender(context.Background(), "slow", time.Minute, render)
				second <- result{page, err}
			}()
			time.Sleep(20 * time.Millisecond)

			cancel()
			assert.ErrorIs(t, <-firstErr, context.Canceled)

			close(release)
			res := <-second
			require.NoError(t, res.err)
			assert.Equal(t, "page", string(res.page))

			// 取消的调用方不影响写入缓存
			got, err := c.GetOrRender(context.Background(), "slow", time.Minute, func(context.Context) ([]byte, error) {
				return nil, errors.New("should be cached")
			})
			require.NoError(t, err)
			assert.Equal(t, "page", string(got))
		})
	}
}

func TestRouteKey(t *testing.T) {
	assert.Equal(t, "/?page=1", RouteKey("/", 1))
	assert.Equal(t, "/group/cats/?page=3", RouteKey("group/cats/", 3))
}

func TestNew(t *testing.T) {
	_, err := New("redis", "p:", nil)
	assert.Error(t, err)
	_, err = New("bogus", "p:", nil)
	assert.Error(t, err)

	c, err := New("memory", "p:", nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryPageCache{}, c)
	c.(*MemoryPageCache).Close()
}
