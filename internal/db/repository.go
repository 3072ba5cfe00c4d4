package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/memehub/memehub/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UserSource exposes read access to account profiles. The progression
// engine uses it to judge profile completeness.
type UserSource interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// UserRepository provides user-related database operations. Accounts are
// provisioned upstream; this service only reads them.
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(repo *Repository) *UserRepository {
	return &UserRepository{Repository: repo}
}

// GetByID retrieves a user by ID, or nil when none exists
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// AchievementStore persists unlock and progress records for the progression
// engine. Unlock creation is idempotent; the insert re-checks non-existence.
type AchievementStore interface {
	GetProgress(ctx context.Context, userID, achievementID string) (*models.AchievementProgress, error)
	UpsertProgress(ctx context.Context, progress *models.AchievementProgress) error
	CreateUnlockIfAbsent(ctx context.Context, unlock *models.AchievementUnlock) (bool, error)
	DeleteUnlock(ctx context.Context, userID, achievementID string) error
	MarkSeen(ctx context.Context, userID, achievementID string) error
	UnlockExists(ctx context.Context, userID, achievementID string) (bool, error)
	ListUnlocks(ctx context.Context, userID string) ([]models.AchievementUnlock, error)
	ListProgress(ctx context.Context, userID string) ([]models.AchievementProgress, error)
}

// FlagStore backs permanent "has this ever happened" criteria. Flags are
// append-only; there is no way to clear one.
type FlagStore interface {
	HasEverDone(ctx context.Context, userID, eventType string) (bool, error)
	MarkEverDone(ctx context.Context, userID, eventType string) error
}

// MetricsSource resolves live criterion values from current state. Counts
// reflect only non-deleted content, so deletions reduce them.
type MetricsSource interface {
	GetActiveContentCount(ctx context.Context, userID, kind string) (int64, error)
	GetTotalReceivedCount(ctx context.Context, userID, metric string) (int64, error)
}

// StatsReader exposes the denormalized follow counters to the progression
// engine without giving it write access to the graph.
type StatsReader interface {
	Stats(ctx context.Context, userID string) (models.FollowStats, error)
}

// AchievementRepository implements AchievementStore on Postgres.
type AchievementRepository struct {
	*Repository
}

// NewAchievementRepository creates a new achievement repository
func NewAchievementRepository(repo *Repository) *AchievementRepository {
	return &AchievementRepository{Repository: repo}
}

// GetProgress retrieves a progress record, or nil when none exists
func (r *AchievementRepository) GetProgress(ctx context.Context, userID, achievementID string) (*models.AchievementProgress, error) {
	var progress models.AchievementProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		First(&progress).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &progress, nil
}

// UpsertProgress creates or updates a progress record
func (r *AchievementRepository) UpsertProgress(ctx context.Context, progress *models.AchievementProgress) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"current_value": progress.CurrentValue,
			"target_value":  progress.TargetValue,
			"last_updated":  progress.LastUpdated,
		}),
	}).Create(progress).Error
}

// CreateUnlockIfAbsent inserts an unlock unless one already exists for the
// pair. Returns true when a new row was created.
func (r *AchievementRepository) CreateUnlockIfAbsent(ctx context.Context, unlock *models.AchievementUnlock) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
		DoNothing: true,
	}).Create(unlock)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteUnlock removes an unlock record (revocation)
func (r *AchievementRepository) DeleteUnlock(ctx context.Context, userID, achievementID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Delete(&models.AchievementUnlock{}).Error
}

// MarkSeen clears the "new" flag on an unlock
func (r *AchievementRepository) MarkSeen(ctx context.Context, userID, achievementID string) error {
	return r.db.WithContext(ctx).
		Model(&models.AchievementUnlock{}).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Update("seen", true).Error
}

// UnlockExists checks whether an unlock exists for the pair
func (r *AchievementRepository) UnlockExists(ctx context.Context, userID, achievementID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AchievementUnlock{}).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUnlocks returns all unlocks for a user, newest first
func (r *AchievementRepository) ListUnlocks(ctx context.Context, userID string) ([]models.AchievementUnlock, error) {
	var unlocks []models.AchievementUnlock
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("unlocked_at DESC").
		Find(&unlocks).Error
	return unlocks, err
}

// ListProgress returns all progress records for a user
func (r *AchievementRepository) ListProgress(ctx context.Context, userID string) ([]models.AchievementProgress, error) {
	var progress []models.AchievementProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("achievement_id ASC").
		Find(&progress).Error
	return progress, err
}

// EventRepository implements FlagStore on the append-only user events table.
type EventRepository struct {
	*Repository
}

// NewEventRepository creates a new event repository
func NewEventRepository(repo *Repository) *EventRepository {
	return &EventRepository{Repository: repo}
}

// HasEverDone reports whether the historical flag is set
func (r *EventRepository) HasEverDone(ctx context.Context, userID, eventType string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserEvent{}).
		Where("user_id = ? AND event_type = ?", userID, eventType).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkEverDone sets the historical flag. Inserting an existing flag is a no-op.
func (r *EventRepository) MarkEverDone(ctx context.Context, userID, eventType string) error {
	event := &models.UserEvent{
		UserID:    userID,
		EventType: eventType,
		FirstAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "event_type"}},
		DoNothing: true,
	}).Create(event).Error
}

// MetricsRepository implements MetricsSource over the content tables.
type MetricsRepository struct {
	*Repository
}

// NewMetricsRepository creates a new metrics repository
func NewMetricsRepository(repo *Repository) *MetricsRepository {
	return &MetricsRepository{Repository: repo}
}

// GetActiveContentCount counts a user's non-deleted content of the given kind
func (r *MetricsRepository) GetActiveContentCount(ctx context.Context, userID, kind string) (int64, error) {
	var count int64
	switch kind {
	case "meme":
		err := r.db.WithContext(ctx).
			Model(&models.Meme{}).
			Where("author_id = ? AND deleted_at IS NULL", userID).
			Count(&count).Error
		return count, err
	case "comment":
		err := r.db.WithContext(ctx).
			Model(&models.Comment{}).
			Where("author_id = ? AND deleted_at IS NULL", userID).
			Count(&count).Error
		return count, err
	default:
		return 0, nil
	}
}

// GetTotalReceivedCount counts engagement received on a user's non-deleted content
func (r *MetricsRepository) GetTotalReceivedCount(ctx context.Context, userID, metric string) (int64, error) {
	var count int64
	switch metric {
	case "like":
		err := r.db.WithContext(ctx).
			Model(&models.Like{}).
			Joins("JOIN memehub_memes ON memehub_memes.id = memehub_likes.meme_id").
			Where("memehub_memes.author_id = ? AND memehub_memes.deleted_at IS NULL", userID).
			Count(&count).Error
		return count, err
	case "comment":
		err := r.db.WithContext(ctx).
			Model(&models.Comment{}).
			Joins("JOIN memehub_memes ON memehub_memes.id = memehub_comments.meme_id").
			Where("memehub_memes.author_id = ? AND memehub_memes.deleted_at IS NULL", userID).
			Where("memehub_comments.deleted_at IS NULL").
			Count(&count).Error
		return count, err
	default:
		return 0, nil
	}
}
