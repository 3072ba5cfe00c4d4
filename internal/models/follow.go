package models

import (
	"time"
)

// FollowEdge represents a directed follow relationship (follower follows following).
// At most one edge exists per ordered pair; a user never follows themselves.
type FollowEdge struct {
	FollowerID  string    `gorm:"primaryKey;type:varchar(64);column:follower_id"`
	FollowingID string    `gorm:"primaryKey;type:varchar(64);column:following_id"`
	CreatedAt   time.Time `gorm:"not null;index:memehub_follows_created_ix;column:created_at"`

	// Relationships
	Follower  *User `gorm:"foreignKey:FollowerID;references:ID"`
	Following *User `gorm:"foreignKey:FollowingID;references:ID"`
}

// TableName specifies the table name for FollowEdge
func (FollowEdge) TableName() string {
	return "memehub_follows"
}
