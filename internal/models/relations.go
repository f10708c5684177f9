package models

import (
	"time"
)

// Like is a (user, post) edge. The counter on Post mirrors the row count.
type Like struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	PostID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"postId"`
	CreatedAt time.Time `json:"createdAt"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

// Follow is a directed follower -> followee edge.
type Follow struct {
	FollowerID uint      `gorm:"primaryKey;autoIncrement:false" json:"followerId"`
	FolloweeID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"followeeId"`
	CreatedAt  time.Time `json:"createdAt"`

	Follower User `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE" json:"-"`
	Followee User `gorm:"foreignKey:FolloweeID;constraint:OnDelete:CASCADE" json:"-"`
}

// Favorite is a viewer-scoped bookmark of another user.
type Favorite struct {
	ViewerID  uint      `gorm:"primaryKey;autoIncrement:false" json:"viewerId"`
	TargetID  uint      `gorm:"primaryKey;autoIncrement:false;index" json:"targetId"`
	CreatedAt time.Time `json:"createdAt"`

	Viewer User `gorm:"foreignKey:ViewerID;constraint:OnDelete:CASCADE" json:"-"`
	Target User `gorm:"foreignKey:TargetID;constraint:OnDelete:CASCADE" json:"-"`
}

// ToggleResult reports relation state and the counter after a toggle.
type ToggleResult struct {
	Active bool `json:"active"`
	Count  int  `json:"count"`
	// OwnerID is the post author or followee on the other side of the edge.
	OwnerID uint `json:"-"`
}
