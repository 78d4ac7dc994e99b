// Package router 路由表与中间件链
package router

import (
	"strings"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/yatube/config"
	_ "github.com/d60-Lab/yatube/docs"
	"github.com/d60-Lab/yatube/internal/api/handler"
	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/auth"
	"github.com/d60-Lab/yatube/internal/metrics"
)

// Deps 路由依赖
type Deps struct {
	Handler *handler.Handler
	Auth    auth.Authenticator
	Metrics *metrics.Metrics
	// MediaRoot 本地图片目录；为空时不挂载 /media
	MediaRoot string
}

func New(cfg *config.Config, d Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Sentry.DSN != "" {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
	}
	r.Use(
		middleware.Logger(),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})),
		middleware.Timeout(cfg.Server.RequestTimeout),
		middleware.Identify(d.Auth),
	)

	limit := func(c *gin.Context) { c.Next() }
	if cfg.RateLimit.Enabled {
		limit = middleware.RateLimit(middleware.NewIPLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	h := d.Handler
	r.GET("/healthz", h.Healthz)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if d.MediaRoot != "" && strings.HasPrefix(cfg.Storage.MediaURL, "/") {
		r.Static(cfg.Storage.MediaURL, d.MediaRoot)
	}

	r.GET("/", h.Index)
	r.GET("/group/:slug/", h.Group)
	r.GET("/profile/:username/", h.Profile)
	r.GET("/posts/:id/", h.PostDetail)
	r.POST("/posts/:id/", h.PostDetailSubmit)
	// 匿名评论由服务层拒绝并跳转登录页
	r.POST("/posts/:id/comment/", limit, h.AddComment)

	authed := r.Group("/", middleware.RequireAuth(h.LoginURL()))
	{
		authed.GET("/create/", h.CreateForm)
		authed.POST("/create/", limit, h.Create)
		authed.GET("/posts/:id/edit/", h.EditForm)
		authed.POST("/posts/:id/edit/", limit, h.Edit)
		authed.POST("/posts/:id/delete/", limit, h.Delete)
		authed.GET("/follow/", h.FollowIndex)
		authed.POST("/profile/:username/follow/", limit, h.Follow)
		authed.POST("/profile/:username/unfollow/", limit, h.Unfollow)
	}

	r.NoRoute(h.NoRoute)
	return r
}
