package handler

import (
	"errors"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/cache"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/internal/view"
	"github.com/d60-Lab/yatube/pkg/response"
)

// Options 处理器的可调参数
type Options struct {
	IndexTTL       time.Duration
	LoginURL       string
	MaxUploadBytes int64
}

// Deps 处理器依赖
type Deps struct {
	DB        *gorm.DB
	Posts     *service.PostService
	Comments  *service.CommentService
	Feeds     *service.FeedService
	Relations service.RelationshipService
	Pages     cache.PageCache
	Views     *view.Builder
	Renderer  view.Renderer
}

type Handler struct {
	db        *gorm.DB
	posts     *service.PostService
	comments  *service.CommentService
	feeds     *service.FeedService
	relations service.RelationshipService
	pages     cache.PageCache
	views     *view.Builder
	renderer  view.Renderer
	opts      Options
}

func New(d Deps, opts Options) *Handler {
	if d.Renderer == nil {
		d.Renderer = view.JSONRenderer{}
	}
	return &Handler{
		db:        d.DB,
		posts:     d.Posts,
		comments:  d.Comments,
		feeds:     d.Feeds,
		relations: d.Relations,
		pages:     d.Pages,
		views:     d.Views,
		renderer:  d.Renderer,
		opts:      opts,
	}
}

// LoginURL 未登录时的跳转地址
func (h *Handler) LoginURL() string { return h.opts.LoginURL }

func (h *Handler) render(c *gin.Context, status int, name string, data interface{}) {
	body, err := h.renderer.Render(name, data)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	c.Data(status, h.renderer.ContentType(), body)
}

// fail 把服务层错误映射成响应；校验错误与越权由调用方按页面处理
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		h.notFound(c)
	case errors.Is(err, service.ErrUnauthorized):
		c.Redirect(http.StatusFound, middleware.LoginRedirect(h.opts.LoginURL, c.Request.URL.RequestURI()))
	case errors.Is(err, service.ErrValidation):
		response.BadRequest(c, err.Error())
	default:
		// 未配置 DSN 时没有 hub
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		response.InternalError(c, err)
	}
}

func (h *Handler) notFound(c *gin.Context) {
	h.render(c, http.StatusNotFound, view.NotFoundPage, view.NotFoundView{Path: c.Request.URL.Path})
}

// NoRoute 未知路由渲染 404 页面
func (h *Handler) NoRoute(c *gin.Context) { h.notFound(c) }

// Healthz 存活检查
// @Summary 健康检查
// @Tags 运维
// @Produce json
// @Success 200 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"status": "ok"})
}

func profileURL(username string) string { return "/profile/" + username + "/" }

func postURL(id string) string { return "/posts/" + id + "/" }

const followURL = "/follow/"

// authorURL 非作者操作帖子时跳到作者主页
func authorURL(p *model.Post) string {
	if p.Author == nil {
		return postURL(p.ID)
	}
	return profileURL(p.Author.Username)
}
