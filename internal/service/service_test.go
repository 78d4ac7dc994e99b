package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/internal/testutil"
	"github.com/d60-Lab/yatube/pkg/blob"
)

var smallGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x02, 0x00,
	0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xFF, 0xFF, 0xFF, 0x21, 0xF9, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00,
	0x02, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x0C,
	0x0A, 0x00, 0x3B,
}

type fixture struct {
	db        *gorm.DB
	mediaDir  string
	posts     *PostService
	comments  *CommentService
	relations RelationshipService
	feeds     *FeedService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	mediaDir := t.TempDir()
	store, err := blob.NewLocalStore(mediaDir, "/media/")
	require.NoError(t, err)

	postRepo := repository.NewPostRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	relations := NewRelationshipService(repository.NewFollowRepository(db))

	ps := NewPostService(postRepo, groupRepo, store)
	// 单调递增的时钟，保证排序稳定
	var mu sync.Mutex
	clock := time.Now()
	ps.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	cs := NewCommentService(commentRepo, postRepo)
	cs.now = ps.now

	return &fixture{
		db:        db,
		mediaDir:  mediaDir,
		posts:     ps,
		comments:  cs,
		relations: relations,
		feeds:     NewFeedService(postRepo, groupRepo, repository.NewUserRepository(db), commentRepo, relations, 10),
	}
}

func TestCreatePost_RetrievableByAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")

	p, err := f.posts.CreatePost(ctx, alice, PostForm{Text: "  hello world  "})
	require.NoError(t, err)
	assert.Equal(t, "hello world", p.Text)
	assert.False(t, p.CreatedAt.IsZero())
	require.NotNil(t, p.Author)
	assert.Equal(t, "alice", p.Author.Username)

	page, err := f.feeds.ListPosts(ctx, repository.PostFilter{AuthorID: alice.ID}, 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, p.ID, page.Items[0].ID)
}

func TestCreatePost_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")

	tests := []struct {
		name  string
		form  PostForm
		field string
	}{
		{"empty text", PostForm{Text: ""}, "text"},
		{"blank text", PostForm{Text: "   \n\t"}, "text"},
		{"unknown group", PostForm{Text: "ok", GroupID: "00000000-0000-0000-0000-000000000000"}, "group"},
		{"not an image", PostForm{Text: "ok", Image: &Upload{Filename: "x.gif", Data: []byte("plain text")}}, "image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.posts.CreatePost(ctx, alice, tt.form)
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	var cnt int64
	require.NoError(t, f.db.Model(&model.Post{}).Count(&cnt).Error)
	assert.Zero(t, cnt)

	_, err := f.posts.CreatePost(ctx, nil, PostForm{Text: "anon"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreatePost_WithGroupAndImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	cats := testutil.CreateGroup(t, f.db, "cats")

	p, err := f.posts.CreatePost(ctx, alice, PostForm{
		Text:    "with picture",
		GroupID: cats.ID,
		Image:   &Upload{Filename: "small.gif", Data: smallGIF},
	})
	require.NoError(t, err)
	require.NotNil(t, p.Group)
	assert.Equal(t, "cats", p.Group.Slug)
	assert.Regexp(t, `^posts/[0-9a-f-]{36}\.gif$`, p.Image)

	_, err = os.Stat(filepath.Join(f.mediaDir, filepath.FromSlash(p.Image)))
	assert.NoError(t, err)
}

func TestEditPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	mallory := testutil.CreateUser(t, f.db, "mallory")
	cats := testutil.CreateGroup(t, f.db, "cats")

	p, err := f.posts.CreatePost(ctx, alice, PostForm{Text: "original", GroupID: cats.ID})
	require.NoError(t, err)

	t.Run("non-author is forbidden and nothing changes", func(t *testing.T) {
		_, err := f.posts.EditPost(ctx, p.ID, mallory, PostForm{Text: "defaced"})
		require.ErrorIs(t, err, ErrForbidden)

		got, err := f.posts.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "original", got.Text)
		require.NotNil(t, got.GroupID)
		assert.Equal(t, cats.ID, *got.GroupID)
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		_, err := f.posts.EditPost(ctx, p.ID, nil, PostForm{Text: "x"})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("author edits text, clears group, keeps created_at", func(t *testing.T) {
		got, err := f.posts.EditPost(ctx, p.ID, alice, PostForm{Text: "edited"})
		require.NoError(t, err)
		assert.Equal(t, "edited", got.Text)
		assert.Nil(t, got.GroupID)
		assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("author with empty text gets validation error", func(t *testing.T) {
		_, err := f.posts.EditPost(ctx, p.ID, alice, PostForm{Text: ""})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("replacing the image removes the old file", func(t *testing.T) {
		first, err := f.posts.EditPost(ctx, p.ID, alice, PostForm{Text: "pic", Image: &Upload{Filename: "a.gif", Data: smallGIF}})
		require.NoError(t, err)
		second, err := f.posts.EditPost(ctx, p.ID, alice, PostForm{Text: "pic", Image: &Upload{Filename: "b.gif", Data: smallGIF}})
		require.NoError(t, err)
		assert.NotEqual(t, first.Image, second.Image)

		_, err = os.Stat(filepath.Join(f.mediaDir, filepath.FromSlash(first.Image)))
		assert.True(t, os.IsNotExist(err))

		kept, err := f.posts.EditPost(ctx, p.ID, alice, PostForm{Text: "no new pic"})
		require.NoError(t, err)
		assert.Equal(t, second.Image, kept.Image, "image survives edits without upload")
	})

	t.Run("unknown post", func(t *testing.T) {
		_, err := f.posts.EditPost(ctx, "missing", alice, PostForm{Text: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeletePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")

	p, err := f.posts.CreatePost(ctx, alice, PostForm{Text: "bye"})
	require.NoError(t, err)
	_, err = f.comments.AddComment(ctx, p.ID, bob, CommentForm{Text: "nice"})
	require.NoError(t, err)

	_, err = f.posts.DeletePost(ctx, p.ID, bob)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.posts.DeletePost(ctx, p.ID, alice)
	require.NoError(t, err)
	_, err = f.posts.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var cnt int64
	require.NoError(t, f.db.Model(&model.Comment{}).Count(&cnt).Error)
	assert.Zero(t, cnt)
}

func TestAddComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")
	p, err := f.posts.CreatePost(ctx, alice, PostForm{Text: "discuss"})
	require.NoError(t, err)
	other, err := f.posts.CreatePost(ctx, alice, PostForm{Text: "quiet"})
	require.NoError(t, err)

	_, err = f.comments.AddComment(ctx, p.ID, bob, CommentForm{Text: ""})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.comments.AddComment(ctx, p.ID, nil, CommentForm{Text: "drive-by"})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.comments.AddComment(ctx, "missing", bob, CommentForm{Text: "hello?"})
	require.ErrorIs(t, err, ErrNotFound)

	var cnt int64
	require.NoError(t, f.db.Model(&model.Comment{}).Count(&cnt).Error)
	assert.Zero(t, cnt, "rejected comments are not persisted")

	c, err := f.comments.AddComment(ctx, p.ID, bob, CommentForm{Text: " first! "})
	require.NoError(t, err)
	assert.Equal(t, "first!", c.Text)

	detail, err := f.feeds.PostDetail(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "bob", detail.Comments[0].Author.Username)
	assert.Equal(t, int64(2), detail.AuthorPostCount)

	quiet, err := f.feeds.PostDetail(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, quiet.Comments, "comments belong to their own post only")
}

func TestFollowUnfollow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.db, "reader")
	a := testutil.CreateUser(t, f.db, "writer")

	require.NoError(t, f.relations.Follow(ctx, u.ID, a.ID))
	require.NoError(t, f.relations.Follow(ctx, u.ID, a.ID))

	var cnt int64
	require.NoError(t, f.db.Model(&model.Follow{}).Where("user_id = ? AND author_id = ?", u.ID, a.ID).Count(&cnt).Error)
	assert.Equal(t, int64(1), cnt)

	err := f.relations.Follow(ctx, u.ID, u.ID)
	assert.ErrorIs(t, err, ErrFollowSelf)
	assert.ErrorIs(t, err, ErrValidation)

	assert.ErrorIs(t, f.relations.Follow(ctx, "", a.ID), ErrUnauthorized)

	followers, following, err := f.relations.Counts(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), followers)
	assert.Zero(t, following)

	require.NoError(t, f.relations.Unfollow(ctx, u.ID, a.ID))
	assert.ErrorIs(t, f.relations.Unfollow(ctx, u.ID, a.ID), ErrNotFound)

	ok, err := f.relations.IsFollowing(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProfileFeed_Pages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	viewer := testutil.CreateUser(t, f.db, "viewer")
	posts := testutil.CreatePosts(t, f.db, alice, nil, 14)

	first, err := f.feeds.ProfileFeed(ctx, "alice", nil, 1)
	require.NoError(t, err)
	assert.Len(t, first.Posts.Items, 10)
	assert.Equal(t, int64(14), first.PostCount)
	assert.Equal(t, posts[13].ID, first.Posts.Items[0].ID, "newest first")
	assert.False(t, first.Authenticated)

	second, err := f.feeds.ProfileFeed(ctx, "alice", nil, 2)
	require.NoError(t, err)
	assert.Len(t, second.Posts.Items, 4)
	assert.Equal(t, 2, second.Posts.NumPages)

	clamped, err := f.feeds.ProfileFeed(ctx, "alice", nil, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, clamped.Posts.Number)

	require.NoError(t, f.relations.Follow(ctx, viewer.ID, alice.ID))
	seen, err := f.feeds.ProfileFeed(ctx, "alice", viewer, 1)
	require.NoError(t, err)
	assert.True(t, seen.Authenticated)
	assert.True(t, seen.IsFollowing)
	assert.Equal(t, int64(1), seen.Followers)

	_, err = f.feeds.ProfileFeed(ctx, "ghost", nil, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGroupFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	cats := testutil.CreateGroup(t, f.db, "cats")
	testutil.CreateGroup(t, f.db, "dogs")
	testutil.CreatePosts(t, f.db, alice, cats, 12)

	g, page, err := f.feeds.GroupFeed(ctx, "cats", 1)
	require.NoError(t, err)
	assert.Equal(t, cats.ID, g.ID)
	assert.Len(t, page.Items, 10)
	assert.True(t, page.HasNext)

	_, empty, err := f.feeds.GroupFeed(ctx, "dogs", 1)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
	assert.Equal(t, 1, empty.NumPages)

	_, _, err = f.feeds.GroupFeed(ctx, "unknown", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFollowFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reader := testutil.CreateUser(t, f.db, "reader")
	liked := testutil.CreateUser(t, f.db, "liked")
	ignored := testutil.CreateUser(t, f.db, "ignored")
	testutil.CreatePosts(t, f.db, liked, nil, 3)
	testutil.CreatePosts(t, f.db, ignored, nil, 3)

	_, err := f.feeds.FollowFeed(ctx, nil, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)

	empty, err := f.feeds.FollowFeed(ctx, reader, 1)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)

	require.NoError(t, f.relations.Follow(ctx, reader.ID, liked.ID))
	page, err := f.feeds.FollowFeed(ctx, reader, 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	for _, p := range page.Items {
		assert.Equal(t, liked.ID, p.AuthorID)
	}
}

func TestValidationError_Message(t *testing.T) {
	verr := &ValidationError{}
	verr.Add("text", "required")
	verr.Add("group", "bad")
	verr.Add("text", "ignored duplicate")
	assert.Equal(t, "validation failed: group: bad; text: required", verr.Error())
}

func TestListForPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	a, err := f.posts.CreatePost(ctx, alice, PostForm{Text: "a"})
	require.NoError(t, err)
	b, err := f.posts.CreatePost(ctx, alice, PostForm{Text: "b"})
	require.NoError(t, err)

	for _, text := range []string{"one", "two"} {
		_, err := f.comments.AddComment(ctx, a.ID, alice, CommentForm{Text: text})
		require.NoError(t, err)
	}
	_, err = f.comments.AddComment(ctx, b.ID, alice, CommentForm{Text: "elsewhere"})
	require.NoError(t, err)

	got, err := f.comments.ListForPost(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Text)
	assert.Equal(t, "two", got[1].Text)

	_, err = f.comments.ListForPost(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
