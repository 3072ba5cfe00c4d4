package models

import (
	"time"
)

// AchievementUnlock records a granted achievement. Unique per (user, achievement).
type AchievementUnlock struct {
	UserID        string    `gorm:"primaryKey;type:varchar(64);column:user_id"`
	AchievementID string    `gorm:"primaryKey;type:varchar(64);column:achievement_id"`
	UnlockedAt    time.Time `gorm:"not null;column:unlocked_at"`
	Seen          bool      `gorm:"not null;default:false;column:seen"`
}

// TableName specifies the table name for AchievementUnlock
func (AchievementUnlock) TableName() string {
	return "memehub_achievement_unlocks"
}

// AchievementProgress tracks the running value for a criterion, kept for UI
// display even before the achievement is unlocked. CurrentValue may fall for
// live criteria when the backing metric shrinks.
type AchievementProgress struct {
	UserID        string    `gorm:"primaryKey;type:varchar(64);column:user_id"`
	AchievementID string    `gorm:"primaryKey;type:varchar(64);column:achievement_id"`
	CurrentValue  int64     `gorm:"not null;default:0;column:current_value"`
	TargetValue   int64     `gorm:"not null;column:target_value"`
	LastUpdated   time.Time `gorm:"not null;column:last_updated"`
}

// TableName specifies the table name for AchievementProgress
func (AchievementProgress) TableName() string {
	return "memehub_achievement_progress"
}

// UserEvent is an append-only historical flag backing permanent ("first time")
// achievement criteria. Rows are only ever inserted, never updated or deleted.
type UserEvent struct {
	UserID    string    `gorm:"primaryKey;type:varchar(64);column:user_id"`
	EventType string    `gorm:"primaryKey;type:varchar(64);column:event_type"`
	FirstAt   time.Time `gorm:"not null;column:first_at"`
}

// TableName specifies the table name for UserEvent
func (UserEvent) TableName() string {
	return "memehub_user_events"
}
