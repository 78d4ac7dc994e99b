// Package blob 图片等二进制对象的存储适配层。
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("blob: object not found")

// Store 对象存储
type Store interface {
	// Save 写入对象，key 形如 posts/<id>.png
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL 对象对外可访问的地址
	URL(key string) string
}

// CleanKey 规范化 key，拒绝跳出根目录的路径
func CleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.TrimSpace(key))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", errors.New("blob: empty key")
	}
	return k, nil
}

func joinURL(base, key string) string {
	if base == "" {
		return key
	}
	return strings.TrimRight(base, "/") + "/" + key
}
