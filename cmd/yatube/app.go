package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/yatube/config"
	"github.com/d60-Lab/yatube/internal/api/handler"
	"github.com/d60-Lab/yatube/internal/auth"
	"github.com/d60-Lab/yatube/internal/cache"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/internal/view"
	"github.com/d60-Lab/yatube/pkg/blob"
	"github.com/d60-Lab/yatube/pkg/database"
	"github.com/d60-Lab/yatube/pkg/logger"
)

// app 进程内共享的依赖
type app struct {
	cfg     *config.Config
	db      *gorm.DB
	redis   *redis.Client
	pages   cache.PageCache
	blobs   blob.Store
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, func() error { return database.Close(db) })

	var client redis.UniversalClient
	if cfg.Cache.Backend == "redis" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, a.redis.Close)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		client = a.redis
	}
	if a.pages, err = cache.New(cfg.Cache.Backend, cfg.Cache.KeyPrefix, client); err != nil {
		a.Close()
		return nil, err
	}
	if mc, ok := a.pages.(*cache.MemoryPageCache); ok {
		a.closers = append(a.closers, func() error { mc.Close(); return nil })
	}

	switch cfg.Storage.Backend {
	case "gcs":
		baseURL := cfg.Storage.MediaURL
		if !strings.HasPrefix(baseURL, "http") {
			baseURL = ""
		}
		gcs, err := blob.NewGCSStore(ctx, cfg.Storage.GCSBucket, cfg.Storage.GCSCredentialsFile, baseURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.blobs = gcs
		a.closers = append(a.closers, gcs.Close)
	default:
		local, err := blob.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.MediaURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.blobs = local
	}
	return a, nil
}

// mediaRoot 本地存储时由 /media 静态路由提供文件
func (a *app) mediaRoot() string {
	if local, ok := a.blobs.(*blob.LocalStore); ok {
		return local.Root()
	}
	return ""
}

func (a *app) authenticator() *auth.JWTAuthenticator {
	return auth.NewJWTAuthenticator(a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL, repository.NewUserRepository(a.db))
}

func (a *app) handler() *handler.Handler {
	users := repository.NewUserRepository(a.db)
	posts := repository.NewPostRepository(a.db)
	groups := repository.NewGroupRepository(a.db)
	comments := repository.NewCommentRepository(a.db)
	relations := service.NewRelationshipService(repository.NewFollowRepository(a.db))

	return handler.New(handler.Deps{
		DB:        a.db,
		Posts:     service.NewPostService(posts, groups, a.blobs),
		Comments:  service.NewCommentService(comments, posts),
		Feeds:     service.NewFeedService(posts, groups, users, comments, relations, a.cfg.Feed.PageSize),
		Relations: relations,
		Pages:     a.pages,
		Views:     view.NewBuilder(a.blobs),
		Renderer:  view.JSONRenderer{},
	}, handler.Options{
		IndexTTL:       a.cfg.Cache.IndexTTL,
		LoginURL:       a.cfg.Auth.LoginURL,
		MaxUploadBytes: a.cfg.Storage.MaxUploadBytes,
	})
}

// Close 逆序释放资源
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("close resource", zap.Error(err))
		}
	}
	a.closers = nil
}
