package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/d60-Lab/yatube/pkg/logger"
)

const scanBatch = 500

var tracer = otel.Tracer("github.com/d60-Lab/yatube/internal/cache")

// RedisPageCache 多进程共享的页面缓存，所有键带 prefix
type RedisPageCache struct {
	client redis.UniversalClient
	prefix string
	group  singleflight.Group
	counters
}

func NewRedisPageCache(client redis.UniversalClient, prefix string) *RedisPageCache {
	return &RedisPageCache{client: client, prefix: prefix}
}

func (c *RedisPageCache) GetOrRender(ctx context.Context, key string, ttl time.Duration, render RenderFunc) ([]byte, error) {
	full := c.prefix + key
	ctx, span := tracer.Start(ctx, "cache.GetOrRender",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("cache.key", full), attribute.String("cache.backend", "redis")),
	)
	defer span.End()

	data, err := c.client.Get(ctx, full).Bytes()
	if err == nil {
		c.hits.Add(1)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return data, nil
	}
	if !errors.Is(err, redis.Nil) {
		// 读失败降级为直接渲染
		logger.Warn("page cache read failed", zap.String("key", full), zap.Error(err))
	}
	c.misses.Add(1)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	page, err := coalesce(ctx, &c.group, full, func(ctx context.Context) ([]byte, error) {
		c.renders.Add(1)
		page, err := render(ctx)
		if err != nil {
			return nil, err
		}
		if ttl > 0 {
			if setErr := c.client.Set(ctx, full, page, ttl).Err(); setErr != nil {
				logger.Warn("page cache write failed", zap.String("key", full), zap.Error(setErr))
			}
		}
		return page, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return page, nil
}

func (c *RedisPageCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}

// ClearAll 先完整 SCAN 出前缀下的键，再分批 UNLINK，不影响同库的其他数据。
// 边扫边删会让游标跳过部分键。
func (c *RedisPageCache) ClearAll(ctx context.Context) error {
	var (
		cursor uint64
		keys   []string
	)
	match := escapeGlob(c.prefix) + "*"
	for {
		batch, next, err := c.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("scan page cache: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	var removed int64
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		n, err := c.client.Unlink(ctx, keys[start:end]...).Result()
		if err != nil {
			return fmt.Errorf("unlink page cache: %w", err)
		}
		removed += n
	}
	logger.Info("page cache cleared", zap.String("prefix", c.prefix), zap.Int64("keys", removed))
	return nil
}

func (c *RedisPageCache) Stats() Stats { return c.snapshot() }

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
