package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
)

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	now      func() time.Time
}

func NewCommentService(comments repository.CommentRepository, posts repository.PostRepository) *CommentService {
	return &CommentService{comments: comments, posts: posts, now: time.Now}
}

// AddComment 匿名用户返回 ErrUnauthorized；空文本返回 ValidationError，不写库
func (s *CommentService) AddComment(ctx context.Context, postID string, author *model.User, form CommentForm) (*model.Comment, error) {
	if author == nil {
		return nil, ErrUnauthorized
	}
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, notFound(err)
	}
	form.normalize()
	if verr := validateStruct(&form); verr != nil {
		return nil, verr
	}

	c := &model.Comment{
		ID:        uuid.New().String(),
		PostID:    postID,
		AuthorID:  author.ID,
		Text:      form.Text,
		CreatedAt: s.now(),
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	c.Author = author
	return c, nil
}

// ListForPost 只返回该帖子的评论，旧的在前
func (s *CommentService) ListForPost(ctx context.Context, postID string) ([]*model.Comment, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, notFound(err)
	}
	return s.comments.ListByPost(ctx, postID)
}
