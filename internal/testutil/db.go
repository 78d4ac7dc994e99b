// Package testutil 测试用的内存数据库与种子数据
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/yatube/config"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/pkg/database"
)

// NewDB 每个测试独立的 SQLite 内存库（外键已开启，表已迁移）
func NewDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      "file:mem_" + strings.ReplaceAll(uuid.NewString(), "-", "") + "?mode=memory&cache=shared",
		LogLevel: "silent",
	})
	if err != nil {
		tb.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	tb.Cleanup(func() { _ = database.Close(db) })
	return db
}

// CreateUser 写入一个目录用户
func CreateUser(tb testing.TB, db *gorm.DB, username string) *model.User {
	tb.Helper()
	u := &model.User{ID: uuid.NewString(), Username: username, Email: username + "@example.com"}
	if err := db.Create(u).Error; err != nil {
		tb.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

// CreateGroup 写入一个社区
func CreateGroup(tb testing.TB, db *gorm.DB, slug string) *model.Group {
	tb.Helper()
	g := &model.Group{ID: uuid.NewString(), Title: "Group " + slug, Slug: slug, Description: "about " + slug}
	if err := db.Create(g).Error; err != nil {
		tb.Fatalf("seed group %s: %v", slug, err)
	}
	return g
}

// CreatePosts 写入 n 条帖子，创建时间逐条递增，最后一条最新
func CreatePosts(tb testing.TB, db *gorm.DB, author *model.User, group *model.Group, n int) []*model.Post {
	tb.Helper()
	base := time.Now().Add(-time.Duration(n) * time.Minute)
	posts := make([]*model.Post, n)
	for i := 0; i < n; i++ {
		p := &model.Post{
			ID:        uuid.NewString(),
			Text:      fmt.Sprintf("post %d by %s", i+1, author.Username),
			AuthorID:  author.ID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if group != nil {
			p.GroupID = &group.ID
		}
		if err := db.Omit("Author", "Group").Create(p).Error; err != nil {
			tb.Fatalf("seed post: %v", err)
		}
		posts[i] = p
	}
	return posts
}
