package models

import (
	"time"
)

// Post is a video post. Likes is a materialized counter kept in step with the likes table.
type Post struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:100;not null" json:"title"`
	Description  string    `gorm:"size:500" json:"description"`
	VideoURL     string    `gorm:"not null" json:"videoUrl"`
	ThumbnailURL string    `gorm:"not null" json:"thumbnailUrl"`
	UserID       uint      `gorm:"not null;index" json:"-"`
	User         User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Likes        int       `gorm:"not null;default:0" json:"likes"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Author   UserSummary `gorm:"-" json:"author"`
	Comments []Comment   `gorm:"-" json:"comments"`
	// Liked reports whether the requesting user liked this post.
	Liked bool `gorm:"-" json:"liked"`
}

// PostCommentRef orders comment references on a post.
type PostCommentRef struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false"`
	CommentID uint      `gorm:"primaryKey;autoIncrement:false;index"`
	Position  int64     `gorm:"not null"`
	CreatedAt time.Time
}

// TableName specifies the table name for GORM
func (PostCommentRef) TableName() string {
	return "post_comment_refs"
}
