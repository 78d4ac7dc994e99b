package view

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/pkg/blob"
	"github.com/d60-Lab/yatube/pkg/pagination"
)

func newBuilder(t *testing.T) *Builder {
	store, err := blob.NewLocalStore(t.TempDir(), "/media/")
	require.NoError(t, err)
	return NewBuilder(store)
}

func TestPostDetailTitleAndOwnership(t *testing.T) {
	b := newBuilder(t)
	author := &model.User{ID: "u1", Username: "leo"}
	post := &model.Post{
		ID:        "p1",
		Text:      strings.Repeat("ж", 40),
		CreatedAt: time.Now(),
		AuthorID:  author.ID,
		Author:    author,
		Image:     "posts/p1.gif",
	}
	d := &service.PostDetail{
		Post:            post,
		Comments:        []*model.Comment{{ID: "c1", Text: "hi", Author: &model.User{ID: "u2", Username: "bob"}}},
		AuthorPostCount: 7,
	}

	v := b.PostDetail(d, author)
	assert.Equal(t, strings.Repeat("ж", 30), v.Title)
	assert.Equal(t, "/media/posts/p1.gif", v.Post.ImageURL)
	assert.True(t, v.CanEdit)
	assert.Equal(t, int64(7), v.AuthorPostCount)
	require.Len(t, v.Comments, 1)
	assert.Equal(t, "bob", v.Comments[0].Author.Username)

	assert.False(t, b.PostDetail(d, nil).CanEdit)
	assert.False(t, b.PostDetail(d, &model.User{ID: "u2"}).CanEdit)
}

func TestProfileFollowingOnlyForAuthenticated(t *testing.T) {
	b := newBuilder(t)
	page := pagination.Paginate([]*model.Post{}, 10, 1)
	anon := b.Profile(&service.Profile{Author: &model.User{Username: "leo"}, Posts: page})
	assert.Nil(t, anon.IsFollowing)
	assert.NotNil(t, anon.Posts, "empty feed renders as an empty list")

	seen := b.Profile(&service.Profile{Author: &model.User{Username: "leo"}, Posts: page, Authenticated: true, IsFollowing: true})
	require.NotNil(t, seen.IsFollowing)
	assert.True(t, *seen.IsFollowing)
}

func TestPostFormView(t *testing.T) {
	b := newBuilder(t)
	groups := []*model.Group{{ID: "g1", Title: "Cats", Slug: "cats"}}

	create := b.PostForm(nil, service.PostForm{Text: "draft"}, groups, map[string]string{"text": "x"})
	assert.False(t, create.IsEdit)
	assert.Nil(t, create.Post)
	assert.Len(t, create.Groups, 1)

	edit := b.PostForm(&model.Post{ID: "p1", Text: "old"}, service.PostForm{Text: "old"}, groups, nil)
	assert.True(t, edit.IsEdit)
	require.NotNil(t, edit.Post)
	assert.Equal(t, "p1", edit.Post.ID)
}

func TestJSONRenderer(t *testing.T) {
	out, err := JSONRenderer{}.Render(NotFoundPage, NotFoundView{Path: "/nope"})
	require.NoError(t, err)

	var env struct {
		Code int          `json:"code"`
		View string       `json:"view"`
		Data NotFoundView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out, &env))
	assert.Equal(t, "core/404.html", env.View)
	assert.Equal(t, "/nope", env.Data.Path)
	assert.Contains(t, JSONRenderer{}.ContentType(), "application/json")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 30))
	assert.Equal(t, "abc", Truncate("abcdef", 3))
}
