package model

import "time"

// Post 帖子
//   - author 删除时级联删除
//   - group 删除时置空
//   - created_at 只在插入时写入
type Post struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"<-:create;index:idx_post_created" json:"created_at"`
	AuthorID  string    `gorm:"type:varchar(36);not null;index:idx_post_author" json:"author_id"`
	Author    *User     `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"author,omitempty"`
	GroupID   *string   `gorm:"type:varchar(36);index:idx_post_group" json:"group_id,omitempty"`
	Group     *Group    `gorm:"foreignKey:GroupID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"group,omitempty"`
	Image     string    `gorm:"type:varchar(255)" json:"image,omitempty"`
}

func (Post) TableName() string { return "posts" }

func (p Post) String() string { return p.Text }
