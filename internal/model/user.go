package model

import "time"

// User 用户目录记录。身份由外部目录维护，这里只保存被引用的字段。
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username  string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"type:varchar(254)" json:"email,omitempty"`
	CreatedAt time.Time `gorm:"<-:create" json:"created_at"`
}

func (User) TableName() string { return "users" }
