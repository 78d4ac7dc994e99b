// Package pagination 对有序序列做分页。
//
// 越界页码被钳制：小于 1 取第 1 页，超过总页数取最后一页；
// 空序列返回第 1 页（共 1 页），不视为错误。
package pagination

import (
	"context"
	"strconv"
	"strings"
)

// DefaultPageSize 默认每页条数
const DefaultPageSize = 10

// Page 一页数据
type Page[T any] struct {
	Items       []T   `json:"items"`
	Number      int   `json:"number"`
	NumPages    int   `json:"num_pages"`
	PageSize    int   `json:"page_size"`
	Total       int64 `json:"total"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// NextNumber 下一页页码，没有时返回 0
func (p *Page[T]) NextNumber() int {
	if !p.HasNext {
		return 0
	}
	return p.Number + 1
}

// PreviousNumber 上一页页码，没有时返回 0
func (p *Page[T]) PreviousNumber() int {
	if !p.HasPrevious {
		return 0
	}
	return p.Number - 1
}

// Window 分页窗口（offset/limit 已按钳制后的页码计算）
type Window struct {
	Number   int
	NumPages int
	PageSize int
	Offset   int
	Limit    int
	Total    int64
}

// Compute 根据总数与请求页码计算窗口
func Compute(total int64, pageSize, number int) Window {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if total < 0 {
		total = 0
	}
	numPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if numPages < 1 {
		numPages = 1
	}
	if number < 1 {
		number = 1
	}
	if number > numPages {
		number = numPages
	}
	offset := (number - 1) * pageSize
	limit := pageSize
	if remaining := int(total) - offset; remaining < limit {
		limit = remaining
	}
	if limit < 0 {
		limit = 0
	}
	return Window{Number: number, NumPages: numPages, PageSize: pageSize, Offset: offset, Limit: limit, Total: total}
}

func newPage[T any](w Window, items []T) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:       items,
		Number:      w.Number,
		NumPages:    w.NumPages,
		PageSize:    w.PageSize,
		Total:       w.Total,
		HasNext:     w.Number < w.NumPages,
		HasPrevious: w.Number > 1,
	}
}

// Paginate 对内存中的序列分页
func Paginate[T any](items []T, pageSize, number int) *Page[T] {
	w := Compute(int64(len(items)), pageSize, number)
	out := make([]T, w.Limit)
	copy(out, items[w.Offset:w.Offset+w.Limit])
	return newPage(w, out)
}

// CountFunc 返回序列总数
type CountFunc func(ctx context.Context) (int64, error)

// FetchFunc 按 offset/limit 取一段
type FetchFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// Query 先计数再按窗口取数，用于数据库查询分页
func Query[T any](ctx context.Context, pageSize, number int, count CountFunc, fetch FetchFunc[T]) (*Page[T], error) {
	total, err := count(ctx)
	if err != nil {
		return nil, err
	}
	w := Compute(total, pageSize, number)
	if w.Limit == 0 {
		return newPage[T](w, nil), nil
	}
	items, err := fetch(ctx, w.Offset, w.Limit)
	if err != nil {
		return nil, err
	}
	return newPage(w, items), nil
}

// ParseNumber 解析 ?page= 参数，无法解析时返回 1
func ParseNumber(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "last" {
		return int(^uint(0) >> 1)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 1
	}
	return n
}
