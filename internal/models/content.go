package models

import (
	"database/sql"
	"time"
)

// Meme represents an uploaded meme. Soft-deleted rows stay in the table but
// are excluded from every live metric count.
type Meme struct {
	ID        int64          `gorm:"primaryKey;autoIncrement;column:id"`
	AuthorID  string         `gorm:"type:varchar(64);not null;index:memehub_memes_author_ix;column:author_id"`
	Title     string         `gorm:"type:varchar(120);not null;default:'';column:title"`
	MediaURL  string         `gorm:"type:varchar(1024);not null;column:media_url"`
	CreatedAt time.Time      `gorm:"not null;column:created_at"`
	DeletedAt sql.NullTime   `gorm:"index:memehub_memes_deleted_ix;column:deleted_at"`
	RawJSON   sql.NullString `gorm:"type:text;column:raw_json"`
}

// TableName specifies the table name for Meme
func (Meme) TableName() string {
	return "memehub_memes"
}

// Like represents a like on a meme.
type Like struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	MemeID    int64     `gorm:"not null;uniqueIndex:memehub_likes_ux1;column:meme_id"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:memehub_likes_ux1;column:user_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`

	Meme *Meme `gorm:"foreignKey:MemeID;references:ID"`
}

// TableName specifies the table name for Like
func (Like) TableName() string {
	return "memehub_likes"
}

// Comment represents a comment on a meme.
type Comment struct {
	ID        int64        `gorm:"primaryKey;autoIncrement;column:id"`
	MemeID    int64        `gorm:"not null;index:memehub_comments_meme_ix;column:meme_id"`
	AuthorID  string       `gorm:"type:varchar(64);not null;index:memehub_comments_author_ix;column:author_id"`
	Body      string       `gorm:"type:text;not null;column:body"`
	CreatedAt time.Time    `gorm:"not null;column:created_at"`
	DeletedAt sql.NullTime `gorm:"column:deleted_at"`

	Meme *Meme `gorm:"foreignKey:MemeID;references:ID"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "memehub_comments"
}
