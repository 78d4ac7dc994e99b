package service

import (
	"context"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/pkg/pagination"
)

// PostPage 一页帖子
type PostPage = pagination.Page[*model.Post]

// Profile 作者主页
type Profile struct {
	Author    *model.User
	Posts     *PostPage
	PostCount int64
	Followers int64
	Following int64
	// IsFollowing 只有登录访客才有意义
	IsFollowing   bool
	Authenticated bool
}

// PostDetail 帖子详情
type PostDetail struct {
	Post            *model.Post
	Comments        []*model.Comment
	AuthorPostCount int64
}

// FeedService 只读的帖子流查询
type FeedService struct {
	posts     repository.PostRepository
	groups    repository.GroupRepository
	users     repository.UserRepository
	comments  repository.CommentRepository
	relations RelationshipService
	pageSize  int
}

func NewFeedService(
	posts repository.PostRepository,
	groups repository.GroupRepository,
	users repository.UserRepository,
	comments repository.CommentRepository,
	relations RelationshipService,
	pageSize int,
) *FeedService {
	if pageSize < 1 {
		pageSize = pagination.DefaultPageSize
	}
	return &FeedService{
		posts:     posts,
		groups:    groups,
		users:     users,
		comments:  comments,
		relations: relations,
		pageSize:  pageSize,
	}
}

// PageSize 每页条数
func (s *FeedService) PageSize() int { return s.pageSize }

// ListPosts 按过滤条件分页，新帖在前
func (s *FeedService) ListPosts(ctx context.Context, f repository.PostFilter, page int) (*PostPage, error) {
	return pagination.Query(ctx, s.pageSize, page,
		func(ctx context.Context) (int64, error) { return s.posts.Count(ctx, f) },
		func(ctx context.Context, offset, limit int) ([]*model.Post, error) {
			return s.posts.List(ctx, f, offset, limit)
		},
	)
}

// GroupFeed 社区帖子流；slug 不存在返回 ErrNotFound
func (s *FeedService) GroupFeed(ctx context.Context, slug string, page int) (*model.Group, *PostPage, error) {
	g, err := s.groups.GetBySlug(ctx, slug)
	if err != nil {
		return nil, nil, notFound(err)
	}
	p, err := s.ListPosts(ctx, repository.PostFilter{GroupID: g.ID}, page)
	if err != nil {
		return nil, nil, err
	}
	return g, p, nil
}

// ProfileFeed 作者主页；viewer 可以为 nil
func (s *FeedService) ProfileFeed(ctx context.Context, username string, viewer *model.User, page int) (*Profile, error) {
	author, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, notFound(err)
	}
	p, err := s.ListPosts(ctx, repository.PostFilter{AuthorID: author.ID}, page)
	if err != nil {
		return nil, err
	}
	followers, following, err := s.relations.Counts(ctx, author.ID)
	if err != nil {
		return nil, err
	}
	out := &Profile{
		Author:    author,
		Posts:     p,
		PostCount: p.Total,
		Followers: followers,
		Following: following,
	}
	if viewer != nil {
		out.Authenticated = true
		if out.IsFollowing, err = s.relations.IsFollowing(ctx, viewer.ID, author.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FollowFeed 关注作者的帖子流；未登录返回 ErrUnauthorized
func (s *FeedService) FollowFeed(ctx context.Context, viewer *model.User, page int) (*PostPage, error) {
	if viewer == nil {
		return nil, ErrUnauthorized
	}
	return s.ListPosts(ctx, repository.PostFilter{FollowedBy: viewer.ID}, page)
}

// PostDetail 帖子、它自己的评论以及作者的帖子总数
func (s *FeedService) PostDetail(ctx context.Context, postID string) (*PostDetail, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, notFound(err)
	}
	comments, err := s.comments.ListByPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	count, err := s.posts.Count(ctx, repository.PostFilter{AuthorID: post.AuthorID})
	if err != nil {
		return nil, err
	}
	return &PostDetail{Post: post, Comments: comments, AuthorPostCount: count}, nil
}

// Groups 所有社区，供表单下拉使用
func (s *FeedService) Groups(ctx context.Context) ([]*model.Group, error) {
	return s.groups.List(ctx)
}

// User 按用户名查找目录用户
func (s *FeedService) User(ctx context.Context, username string) (*model.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}
