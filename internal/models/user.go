package models

import (
	"time"
)

// User represents a memehub account with denormalized follow counters.
// FollowersCount and FollowingCount are maintained in the same transaction
// as the follow edge touching them and are never negative.
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(64);column:id"`
	Handle    string    `gorm:"type:varchar(32);not null;uniqueIndex:memehub_users_ux1;column:handle"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`

	// Denormalized social stats
	FollowersCount int64 `gorm:"not null;default:0;column:followers_count"`
	FollowingCount int64 `gorm:"not null;default:0;column:following_count"`

	// Profile fields
	DisplayName  string `gorm:"type:varchar(40);not null;default:'';column:display_name"`
	Bio          string `gorm:"type:varchar(160);not null;default:'';column:bio"`
	ProfileImage string `gorm:"type:varchar(1024);not null;default:'';column:profile_image"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "memehub_users"
}

// FollowStats is the pair of denormalized counters exposed to callers.
type FollowStats struct {
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
}
