package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/pkg/blob"
	"github.com/d60-Lab/yatube/pkg/logger"
)

// imagePrefix 上传图片的存储前缀
const imagePrefix = "posts/"

// PostService 帖子的创建、编辑、删除
type PostService struct {
	posts  repository.PostRepository
	groups repository.GroupRepository
	blobs  blob.Store
	now    func() time.Time
}

func NewPostService(posts repository.PostRepository, groups repository.GroupRepository, blobs blob.Store) *PostService {
	return &PostService{posts: posts, groups: groups, blobs: blobs, now: time.Now}
}

// Get 读取帖子（含作者与社区）
func (s *PostService) Get(ctx context.Context, id string) (*model.Post, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// CreatePost 校验并保存新帖子，创建时间由服务端写入
func (s *PostService) CreatePost(ctx context.Context, author *model.User, form PostForm) (*model.Post, error) {
	if author == nil {
		return nil, ErrUnauthorized
	}
	groupID, err := s.check(ctx, &form)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		ID:        uuid.New().String(),
		Text:      form.Text,
		AuthorID:  author.ID,
		GroupID:   groupID,
		CreatedAt: s.now(),
	}
	if form.Image != nil {
		key, err := s.storeImage(ctx, form.Image)
		if err != nil {
			return nil, err
		}
		post.Image = key
	}

	if err := s.posts.Create(ctx, post); err != nil {
		s.dropImage(ctx, post.Image)
		return nil, fmt.Errorf("create post: %w", err)
	}
	logger.Info("post created", zap.String("post", post.ID), zap.String("author", author.ID))
	return s.Get(ctx, post.ID)
}

// EditPost 只有作者可以编辑；非作者返回 ErrForbidden 且帖子不变
func (s *PostService) EditPost(ctx context.Context, postID string, actor *model.User, form PostForm) (*model.Post, error) {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return post, ErrUnauthorized
	}
	if actor.ID != post.AuthorID {
		return post, ErrForbidden
	}
	groupID, err := s.check(ctx, &form)
	if err != nil {
		return post, err
	}

	updated := *post
	updated.Text = form.Text
	updated.GroupID = groupID
	if form.Image != nil {
		key, err := s.storeImage(ctx, form.Image)
		if err != nil {
			return post, err
		}
		updated.Image = key
	}

	if err := s.posts.Update(ctx, &updated); err != nil {
		if updated.Image != post.Image {
			s.dropImage(ctx, updated.Image)
		}
		return post, fmt.Errorf("update post %s: %w", postID, notFound(err))
	}
	if updated.Image != post.Image {
		s.dropImage(ctx, post.Image)
	}
	return s.Get(ctx, postID)
}

// DeletePost 只有作者可以删除；评论随外键级联删除
func (s *PostService) DeletePost(ctx context.Context, postID string, actor *model.User) (*model.Post, error) {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return post, ErrUnauthorized
	}
	if actor.ID != post.AuthorID {
		return post, ErrForbidden
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return post, notFound(err)
	}
	s.dropImage(ctx, post.Image)
	logger.Info("post deleted", zap.String("post", postID), zap.String("author", actor.ID))
	return post, nil
}

// check 规范化并校验表单，返回要写入的 group_id
func (s *PostService) check(ctx context.Context, form *PostForm) (*string, error) {
	form.normalize()
	verr := validateStruct(form)
	if verr == nil {
		verr = &ValidationError{}
	}

	var groupID *string
	if form.GroupID != "" && verr.Fields["groupid"] == "" {
		g, err := s.groups.GetByID(ctx, form.GroupID)
		switch {
		case err == nil:
			groupID = &g.ID
		case errors.Is(notFound(err), ErrNotFound):
			verr.Add("group", "select a valid choice")
		default:
			return nil, err
		}
	}
	if v, ok := verr.Fields["groupid"]; ok {
		delete(verr.Fields, "groupid")
		verr.Add("group", v)
	}
	if form.Image != nil {
		if _, _, ok := sniffImage(form.Image); !ok {
			verr.Add("image", "upload a valid image")
		}
	}

	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return groupID, nil
}

func (s *PostService) storeImage(ctx context.Context, u *Upload) (string, error) {
	contentType, ext, _ := sniffImage(u)
	key := imagePrefix + uuid.New().String() + ext
	if err := s.blobs.Save(ctx, key, bytes.NewReader(u.Data), contentType); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return key, nil
}

func (s *PostService) dropImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, blob.ErrNotFound) {
		logger.Warn("drop image failed", zap.String("key", key), zap.Error(err))
	}
}
