// Package model 定义存储实体及其外键策略。
package model

// All 返回需要迁移的模型，按外键依赖排序
func All() []interface{} {
	return []interface{}{&User{}, &Group{}, &Post{}, &Comment{}, &Follow{}}
}
