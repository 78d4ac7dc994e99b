package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/internal/view"
	"github.com/d60-Lab/yatube/pkg/response"
)

const multipartMemory = 8 << 20

// PostDetail 帖子详情
// @Summary 帖子详情
// @Tags 帖子
// @Produce json
// @Param id path string true "帖子 ID"
// @Success 200 {object} response.Response{data=view.PostDetailView}
// @Failure 404 {object} response.Response{data=view.NotFoundView}
// @Router /posts/{id}/ [get]
func (h *Handler) PostDetail(c *gin.Context) {
	d, err := h.feeds.PostDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, view.PostDetailPage, h.views.PostDetail(d, middleware.CurrentUser(c)))
}

// PostDetailSubmit 在详情页提交的评论转交给评论接口
func (h *Handler) PostDetailSubmit(c *gin.Context) {
	c.Redirect(http.StatusTemporaryRedirect, postURL(c.Param("id"))+"comment/")
}

// CreateForm 新帖表单
// @Summary 新帖表单
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=view.PostFormView}
// @Router /create/ [get]
func (h *Handler) CreateForm(c *gin.Context) {
	h.renderForm(c, http.StatusOK, nil, service.PostForm{}, nil)
}

// Create 发帖
// @Summary 发帖
// @Tags 帖子
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param text formData string true "正文"
// @Param group formData string false "社区 ID"
// @Param image formData file false "图片"
// @Success 303 "跳转到作者主页"
// @Failure 400 {object} response.Response{data=view.PostFormView}
// @Router /create/ [post]
func (h *Handler) Create(c *gin.Context) {
	me := middleware.CurrentUser(c)
	form, err := h.bindPostForm(c)
	if err == nil {
		_, err = h.posts.CreatePost(c.Request.Context(), me, form)
	}
	var verr *service.ValidationError
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, profileURL(me.Username))
	case errors.As(err, &verr):
		h.renderForm(c, http.StatusBadRequest, nil, form, verr.Fields)
	default:
		h.fail(c, err)
	}
}

// EditForm 编辑表单；非作者跳到作者主页
// @Summary 编辑表单
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子 ID"
// @Success 200 {object} response.Response{data=view.PostFormView}
// @Failure 302 "非作者跳到作者主页"
// @Router /posts/{id}/edit/ [get]
func (h *Handler) EditForm(c *gin.Context) {
	post, err := h.posts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	me := middleware.CurrentUser(c)
	if me == nil || me.ID != post.AuthorID {
		c.Redirect(http.StatusFound, authorURL(post))
		return
	}
	form := service.PostForm{Text: post.Text}
	if post.GroupID != nil {
		form.GroupID = *post.GroupID
	}
	h.renderForm(c, http.StatusOK, post, form, nil)
}

// Edit 保存编辑
// @Summary 编辑帖子
// @Tags 帖子
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子 ID"
// @Param text formData string true "正文"
// @Param group formData string false "社区 ID，留空表示不属于任何社区"
// @Param image formData file false "新图片"
// @Success 303 "跳转到帖子页"
// @Failure 302 "非作者跳到作者主页"
// @Failure 400 {object} response.Response{data=view.PostFormView}
// @Router /posts/{id}/edit/ [post]
func (h *Handler) Edit(c *gin.Context) {
	id := c.Param("id")
	form, err := h.bindPostForm(c)
	var post *model.Post
	if err == nil {
		post, err = h.posts.EditPost(c.Request.Context(), id, middleware.CurrentUser(c), form)
	} else {
		post, err = h.editableOrErr(c, id, err)
	}

	var verr *service.ValidationError
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, postURL(id))
	case errors.Is(err, service.ErrForbidden):
		c.Redirect(http.StatusFound, authorURL(post))
	case errors.As(err, &verr) && post != nil:
		h.renderForm(c, http.StatusBadRequest, post, form, verr.Fields)
	default:
		h.fail(c, err)
	}
}

// editableOrErr 表单解析失败时仍先确认帖子存在且属于当前用户
func (h *Handler) editableOrErr(c *gin.Context, id string, formErr error) (*model.Post, error) {
	post, err := h.posts.Get(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if me := middleware.CurrentUser(c); me == nil || me.ID != post.AuthorID {
		return post, service.ErrForbidden
	}
	return post, formErr
}

// Delete 删除帖子
// @Summary 删除帖子
// @Tags 帖子
// @Security BearerAuth
// @Param id path string true "帖子 ID"
// @Success 303 "跳转到作者主页"
// @Failure 302 "非作者跳到作者主页"
// @Failure 404 {object} response.Response{data=view.NotFoundView}
// @Router /posts/{id}/delete/ [post]
func (h *Handler) Delete(c *gin.Context) {
	me := middleware.CurrentUser(c)
	post, err := h.posts.DeletePost(c.Request.Context(), c.Param("id"), me)
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, profileURL(me.Username))
	case errors.Is(err, service.ErrForbidden):
		c.Redirect(http.StatusFound, authorURL(post))
	default:
		h.fail(c, err)
	}
}

// AddComment 发表评论；匿名用户跳转登录页，不写库
// @Summary 发表评论
// @Tags 评论
// @Accept x-www-form-urlencoded
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子 ID"
// @Param text formData string true "评论内容"
// @Success 303 "跳转到帖子页"
// @Failure 302 "未登录跳转登录页"
// @Failure 400 {object} response.Response{data=view.PostDetailView}
// @Router /posts/{id}/comment/ [post]
func (h *Handler) AddComment(c *gin.Context) {
	id := c.Param("id")
	me := middleware.CurrentUser(c)
	_, err := h.comments.AddComment(c.Request.Context(), id, me, service.CommentForm{Text: c.PostForm("text")})

	var verr *service.ValidationError
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, postURL(id))
	case errors.As(err, &verr):
		d, derr := h.feeds.PostDetail(c.Request.Context(), id)
		if derr != nil {
			h.fail(c, derr)
			return
		}
		v := h.views.PostDetail(d, me)
		v.CommentErrors = verr.Fields
		h.render(c, http.StatusBadRequest, view.PostDetailPage, v)
	default:
		h.fail(c, err)
	}
}

func (h *Handler) renderForm(c *gin.Context, status int, post *model.Post, form service.PostForm, errs map[string]string) {
	groups, err := h.feeds.Groups(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	h.render(c, status, view.PostFormPage, h.views.PostForm(post, form, groups, errs))
}

// bindPostForm 读取 text、group 与可选的 image 文件
func (h *Handler) bindPostForm(c *gin.Context) (service.PostForm, error) {
	if h.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)
	}
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return service.PostForm{}, service.NewValidationError("image", "file is too large")
		}
		return service.PostForm{}, service.NewValidationError("form", "malformed form body")
	}

	form := service.PostForm{Text: c.PostForm("text"), GroupID: c.PostForm("group")}
	fh, err := c.FormFile("image")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			return form, err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return form, err
		}
		form.Image = &service.Upload{Filename: fh.Filename, Data: data}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return form, err
	}
	return form, nil
}
