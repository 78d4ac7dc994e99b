package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/cache"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/internal/view"
	"github.com/d60-Lab/yatube/pkg/pagination"
)

// Index 首页帖子流。整页缓存，键只含路由与页码，过期前的新帖不可见。
// @Summary 最新帖子
// @Tags 帖子
// @Produce json
// @Param page query string false "页码，last 表示最后一页"
// @Success 200 {object} response.Response{data=view.IndexView}
// @Router / [get]
func (h *Handler) Index(c *gin.Context) {
	ctx := c.Request.Context()
	path := c.Request.URL.Path
	number := max(pagination.ParseNumber(c.Query("page")), 1)

	body, err := h.pages.GetOrRender(ctx, cache.RouteKey(path, number), h.opts.IndexTTL, h.renderIndex(number, true))
	var clamped *clampedPage
	if errors.As(err, &clamped) {
		// 越界页码不单独缓存，改用钳制后的页码作为键
		body, err = h.pages.GetOrRender(ctx, cache.RouteKey(path, clamped.number), h.opts.IndexTTL, h.renderIndex(clamped.number, false))
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, h.renderer.ContentType(), body)
}

// clampedPage 请求页码越界，number 为实际页码
type clampedPage struct{ number int }

func (e *clampedPage) Error() string { return fmt.Sprintf("page clamped to %d", e.number) }

// renderIndex exact 为 true 时页码被钳制就返回 clampedPage，不渲染
func (h *Handler) renderIndex(number int, exact bool) cache.RenderFunc {
	return func(ctx context.Context) ([]byte, error) {
		page, err := h.feeds.ListPosts(ctx, repository.PostFilter{}, number)
		if err != nil {
			return nil, err
		}
		if exact && page.Number != number {
			return nil, &clampedPage{number: page.Number}
		}
		return h.renderer.Render(view.IndexPage, h.views.Index(page))
	}
}

// Group 社区帖子流
// @Summary 社区帖子
// @Tags 帖子
// @Produce json
// @Param slug path string true "社区 slug"
// @Param page query string false "页码"
// @Success 200 {object} response.Response{data=view.GroupView}
// @Failure 404 {object} response.Response{data=view.NotFoundView}
// @Router /group/{slug}/ [get]
func (h *Handler) Group(c *gin.Context) {
	g, page, err := h.feeds.GroupFeed(c.Request.Context(), c.Param("slug"), pagination.ParseNumber(c.Query("page")))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, view.GroupPage, h.views.Group(g, page))
}

// Profile 作者主页
// @Summary 作者主页
// @Tags 帖子
// @Produce json
// @Param username path string true "用户名"
// @Param page query string false "页码"
// @Success 200 {object} response.Response{data=view.ProfileView}
// @Failure 404 {object} response.Response{data=view.NotFoundView}
// @Router /profile/{username}/ [get]
func (h *Handler) Profile(c *gin.Context) {
	p, err := h.feeds.ProfileFeed(c.Request.Context(), c.Param("username"),
		middleware.CurrentUser(c), pagination.ParseNumber(c.Query("page")))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, view.ProfilePage, h.views.Profile(p))
}

// FollowIndex 关注作者的帖子流
// @Summary 关注流
// @Tags 关系链
// @Produce json
// @Security BearerAuth
// @Param page query string false "页码"
// @Success 200 {object} response.Response{data=view.FollowView}
// @Failure 302 "未登录跳转登录页"
// @Router /follow/ [get]
func (h *Handler) FollowIndex(c *gin.Context) {
	page, err := h.feeds.FollowFeed(c.Request.Context(), middleware.CurrentUser(c), pagination.ParseNumber(c.Query("page")))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, view.FollowPage, h.views.Follow(page))
}
