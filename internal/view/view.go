// Package view 每个页面对应一个静态类型的视图模型，以及把它们变成字节的渲染器。
package view

import (
	"time"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/pkg/blob"
)

// 视图名
const (
	IndexPage      = "posts/index.html"
	GroupPage      = "posts/group_list.html"
	ProfilePage    = "posts/profile.html"
	PostDetailPage = "posts/post_detail.html"
	PostFormPage   = "posts/create_post.html"
	FollowPage     = "posts/follow.html"
	NotFoundPage   = "core/404.html"
)

const titleLen = 30

type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type GroupRef struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

type PostItem struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Author    UserRef   `json:"author"`
	Group     *GroupRef `json:"group,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
}

type CommentItem struct {
	ID        string    `json:"id"`
	Author    UserRef   `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// PageInfo 分页导航
type PageInfo struct {
	Number      int   `json:"number"`
	NumPages    int   `json:"num_pages"`
	Total       int64 `json:"total"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
	Next        int   `json:"next,omitempty"`
	Previous    int   `json:"previous,omitempty"`
}

type IndexView struct {
	Title string     `json:"title"`
	Posts []PostItem `json:"posts"`
	Page  PageInfo   `json:"page"`
}

type GroupView struct {
	Title string     `json:"title"`
	Group GroupRef   `json:"group"`
	Posts []PostItem `json:"posts"`
	Page  PageInfo   `json:"page"`
}

type ProfileView struct {
	Author    UserRef    `json:"author"`
	PostCount int64      `json:"post_count"`
	Followers int64      `json:"followers"`
	Following int64      `json:"following"`
	// IsFollowing 匿名访客为 nil
	IsFollowing *bool      `json:"is_following,omitempty"`
	Posts       []PostItem `json:"posts"`
	Page        PageInfo   `json:"page"`
}

type PostDetailView struct {
	Title           string        `json:"title"`
	Post            PostItem      `json:"post"`
	AuthorPostCount int64         `json:"author_post_count"`
	Comments        []CommentItem `json:"comments"`
	CanEdit         bool          `json:"can_edit"`
	// CommentErrors 评论表单的字段错误
	CommentErrors map[string]string `json:"comment_errors,omitempty"`
}

// PostFormView 创建与编辑共用
type PostFormView struct {
	IsEdit bool              `json:"is_edit"`
	Post   *PostItem         `json:"post,omitempty"`
	Text   string            `json:"text"`
	Group  string            `json:"group,omitempty"`
	Groups []GroupRef        `json:"groups"`
	Errors map[string]string `json:"errors,omitempty"`
}

type FollowView struct {
	Title string     `json:"title"`
	Posts []PostItem `json:"posts"`
	Page  PageInfo   `json:"page"`
}

type NotFoundView struct {
	Path string `json:"path"`
}

// Builder 把领域对象转换成视图模型，图片 key 通过 blob store 变成 URL
type Builder struct {
	blobs blob.Store
}

func NewBuilder(blobs blob.Store) *Builder { return &Builder{blobs: blobs} }

func (b *Builder) Post(p *model.Post) PostItem {
	item := PostItem{
		ID:        p.ID,
		Text:      p.Text,
		CreatedAt: p.CreatedAt,
		Author:    User(p.Author),
	}
	if p.Group != nil {
		g := Group(p.Group)
		item.Group = &g
	}
	if p.Image != "" && b.blobs != nil {
		item.ImageURL = b.blobs.URL(p.Image)
	}
	return item
}

// Posts 转换一页帖子；Items 为空时返回空切片而非 nil
func (b *Builder) Posts(page *service.PostPage) ([]PostItem, PageInfo) {
	items := make([]PostItem, 0, len(page.Items))
	for _, p := range page.Items {
		items = append(items, b.Post(p))
	}
	return items, PageInfo{
		Number:      page.Number,
		NumPages:    page.NumPages,
		Total:       page.Total,
		HasNext:     page.HasNext,
		HasPrevious: page.HasPrevious,
		Next:        page.NextNumber(),
		Previous:    page.PreviousNumber(),
	}
}

func (b *Builder) Index(page *service.PostPage) IndexView {
	posts, info := b.Posts(page)
	return IndexView{Title: "Последние обновления на сайте", Posts: posts, Page: info}
}

func (b *Builder) Group(g *model.Group, page *service.PostPage) GroupView {
	posts, info := b.Posts(page)
	return GroupView{Title: "Записи сообщества " + g.String(), Group: Group(g), Posts: posts, Page: info}
}

func (b *Builder) Profile(p *service.Profile) ProfileView {
	posts, info := b.Posts(p.Posts)
	out := ProfileView{
		Author:    User(p.Author),
		PostCount: p.PostCount,
		Followers: p.Followers,
		Following: p.Following,
		Posts:     posts,
		Page:      info,
	}
	if p.Authenticated {
		following := p.IsFollowing
		out.IsFollowing = &following
	}
	return out
}

// PostDetail viewer 可以为 nil
func (b *Builder) PostDetail(d *service.PostDetail, viewer *model.User) PostDetailView {
	comments := make([]CommentItem, 0, len(d.Comments))
	for _, c := range d.Comments {
		comments = append(comments, CommentItem{
			ID:        c.ID,
			Author:    User(c.Author),
			Text:      c.Text,
			CreatedAt: c.CreatedAt,
		})
	}
	return PostDetailView{
		Title:           Truncate(d.Post.Text, titleLen),
		Post:            b.Post(d.Post),
		AuthorPostCount: d.AuthorPostCount,
		Comments:        comments,
		CanEdit:         viewer != nil && viewer.ID == d.Post.AuthorID,
	}
}

// PostForm post 为 nil 时是创建表单
func (b *Builder) PostForm(post *model.Post, form service.PostForm, groups []*model.Group, errs map[string]string) PostFormView {
	out := PostFormView{
		Text:   form.Text,
		Group:  form.GroupID,
		Groups: make([]GroupRef, 0, len(groups)),
		Errors: errs,
	}
	for _, g := range groups {
		out.Groups = append(out.Groups, Group(g))
	}
	if post != nil {
		item := b.Post(post)
		out.IsEdit = true
		out.Post = &item
	}
	return out
}

func (b *Builder) Follow(page *service.PostPage) FollowView {
	posts, info := b.Posts(page)
	return FollowView{Title: "Избранные авторы", Posts: posts, Page: info}
}

func User(u *model.User) UserRef {
	if u == nil {
		return UserRef{}
	}
	return UserRef{ID: u.ID, Username: u.Username}
}

func Group(g *model.Group) GroupRef {
	return GroupRef{ID: g.ID, Title: g.Title, Slug: g.Slug, Description: g.Description}
}

// Truncate 按字符（不是字节）截断
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
