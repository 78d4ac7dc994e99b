package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/pkg/response"
)

// Follow 关注作者（重复关注不报错）
// @Summary 关注作者
// @Tags 关系链
// @Security BearerAuth
// @Param username path string true "作者用户名"
// @Success 303 "跳转到关注流"
// @Failure 400 {object} response.Response "不能关注自己"
// @Failure 404 {object} response.Response{data=view.NotFoundView}
// @Router /profile/{username}/follow/ [post]
func (h *Handler) Follow(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := h.feeds.User(ctx, c.Param("username"))
	if err != nil {
		h.fail(c, err)
		return
	}
	me := middleware.CurrentUser(c)
	var userID string
	if me != nil {
		userID = me.ID
	}

	err = h.relations.Follow(ctx, userID, author.ID)
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, followURL)
	case errors.Is(err, service.ErrFollowSelf):
		response.BadRequest(c, err.Error())
	default:
		h.fail(c, err)
	}
}

// Unfollow 取消关注；关系不存在返回 404
// @Summary 取消关注
// @Tags 关系链
// @Security BearerAuth
// @Param username path string true "作者用户名"
// @Success 303 "跳转到关注流"
// @Failure 404 {object} response.Response{data=view.NotFoundView}
// @Router /profile/{username}/unfollow/ [post]
func (h *Handler) Unfollow(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := h.feeds.User(ctx, c.Param("username"))
	if err != nil {
		h.fail(c, err)
		return
	}
	me := middleware.CurrentUser(c)
	if me == nil {
		h.fail(c, service.ErrUnauthorized)
		return
	}
	if err := h.relations.Unfollow(ctx, me.ID, author.ID); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, followURL)
}
