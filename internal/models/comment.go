package models

import (
	"time"
)

// Comment is a text entry on a post.
type Comment struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Text      string      `gorm:"size:500;not null" json:"text"`
	UserID    uint        `gorm:"not null;index" json:"-"`
	PostID    uint        `gorm:"not null;index" json:"post"`
	User      User        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post      *Post       `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Author    UserSummary `gorm:"-" json:"author"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
