package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/memehub/memehub/internal/models"
	"github.com/memehub/memehub/pkg/logging"
)

var (
	// ErrReadAfterWrite is returned when a transaction attempts a read after
	// its first write. All reads must complete before any write is issued;
	// the transaction is structured read-then-write so precondition checks
	// always see the pre-mutation state.
	ErrReadAfterWrite = errors.New("transaction read attempted after write")

	// ErrUnavailable is returned when a transaction keeps conflicting after
	// the bounded number of retry attempts.
	ErrUnavailable = errors.New("store unavailable after retries")

	// ErrDuplicateEdge is returned when an edge insert loses a race with a
	// concurrent insert of the same pair.
	ErrDuplicateEdge = errors.New("follow edge already exists")
)

// GraphTx is the transactional view used by follow/unfollow. Reads must all
// happen before the first write; read methods fail with ErrReadAfterWrite
// once a write has been issued.
type GraphTx interface {
	// Reads
	EdgeExists(followerID, followingID string) (bool, error)
	UserStats(userID string) (models.FollowStats, error)

	// Writes
	InsertEdge(edge *models.FollowEdge) error
	DeleteEdge(followerID, followingID string) error
	PutStats(userID string, stats models.FollowStats) error
}

// GraphStore provides durable storage for follow edges and counters.
type GraphStore interface {
	RunInTx(ctx context.Context, fn func(tx GraphTx) error) error
	HasEdge(ctx context.Context, followerID, followingID string) (bool, error)
	HasEdges(ctx context.Context, followerID string, targetIDs []string) (map[string]bool, error)
	Stats(ctx context.Context, userID string) (models.FollowStats, error)
	ListFollowers(ctx context.Context, userID string, limit int) ([]models.FollowEdge, error)
	ListFollowing(ctx context.Context, userID string, limit int) ([]models.FollowEdge, error)
}

// gormGraphStore implements GraphStore on top of Postgres.
type gormGraphStore struct {
	db          *gorm.DB
	maxAttempts int
	logger      *zap.Logger
}

// NewGraphStore creates a Postgres-backed graph store. maxAttempts bounds
// retries on serialization conflicts before ErrUnavailable is surfaced.
func NewGraphStore(db *gorm.DB, maxAttempts int) GraphStore {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &gormGraphStore{
		db:          db,
		maxAttempts: maxAttempts,
		logger:      logging.GetLogger().With(zap.String("component", "graph-store")),
	}
}

// RunInTx runs fn in a serializable transaction. Serializable isolation is
// what makes the counter updates safe: two transactions that both read a
// user's counters cannot both commit, the loser fails with SQLSTATE 40001
// and is retried here against the newly committed state.
func (s *gormGraphStore) RunInTx(ctx context.Context, fn func(tx GraphTx) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&gormGraphTx{tx: tx})
		}, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err == nil {
			return nil
		}
		if !isTransientConflict(err) {
			return err
		}
		lastErr = err
		s.logger.Warn("Transaction conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	s.logger.Error("Transaction failed after retries",
		zap.Int("attempts", s.maxAttempts),
		zap.Error(lastErr))
	return ErrUnavailable
}

// isTransientConflict reports whether err is a serialization failure or
// deadlock that a retry can resolve (SQLSTATE 40001 / 40P01).
func isTransientConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "40001") ||
		strings.Contains(msg, "40P01") ||
		strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "deadlock detected")
}

func (s *gormGraphStore) HasEdge(ctx context.Context, followerID, followingID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.FollowEdge{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *gormGraphStore) HasEdges(ctx context.Context, followerID string, targetIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		result[id] = false
	}
	if len(targetIDs) == 0 {
		return result, nil
	}

	var edges []models.FollowEdge
	err := s.db.WithContext(ctx).
		Where("follower_id = ? AND following_id IN ?", followerID, targetIDs).
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	for _, edge := range edges {
		result[edge.FollowingID] = true
	}
	return result, nil
}

func (s *gormGraphStore) Stats(ctx context.Context, userID string) (models.FollowStats, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Select("followers_count", "following_count").
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Counters default to zero for users with no row yet
			return models.FollowStats{}, nil
		}
		return models.FollowStats{}, err
	}
	return models.FollowStats{
		FollowersCount: user.FollowersCount,
		FollowingCount: user.FollowingCount,
	}, nil
}

func (s *gormGraphStore) ListFollowers(ctx context.Context, userID string, limit int) ([]models.FollowEdge, error) {
	var edges []models.FollowEdge
	err := s.db.WithContext(ctx).
		Where("following_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&edges).Error
	return edges, err
}

func (s *gormGraphStore) ListFollowing(ctx context.Context, userID string, limit int) ([]models.FollowEdge, error) {
	var edges []models.FollowEdge
	err := s.db.WithContext(ctx).
		Where("follower_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&edges).Error
	return edges, err
}

// gormGraphTx enforces the read-then-write ordering inside a transaction.
type gormGraphTx struct {
	tx    *gorm.DB
	wrote bool
}

func (t *gormGraphTx) EdgeExists(followerID, followingID string) (bool, error) {
	if t.wrote {
		return false, ErrReadAfterWrite
	}
	var count int64
	err := t.tx.
		Model(&models.FollowEdge{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (t *gormGraphTx) UserStats(userID string) (models.FollowStats, error) {
	if t.wrote {
		return models.FollowStats{}, ErrReadAfterWrite
	}
	var user models.User
	err := t.tx.
		Select("followers_count", "following_count").
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.FollowStats{}, nil
		}
		return models.FollowStats{}, err
	}
	return models.FollowStats{
		FollowersCount: user.FollowersCount,
		FollowingCount: user.FollowingCount,
	}, nil
}

func (t *gormGraphTx) InsertEdge(edge *models.FollowEdge) error {
	t.wrote = true
	if err := t.tx.Create(edge).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEdge
		}
		return err
	}
	return nil
}

// isDuplicateKey reports whether err is a unique constraint violation
// (SQLSTATE 23505).
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate key value")
}

func (t *gormGraphTx) DeleteEdge(followerID, followingID string) error {
	t.wrote = true
	return t.tx.
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.FollowEdge{}).Error
}

func (t *gormGraphTx) PutStats(userID string, stats models.FollowStats) error {
	t.wrote = true
	user := models.User{
		ID:             userID,
		Handle:         userID,
		FollowersCount: stats.FollowersCount,
		FollowingCount: stats.FollowingCount,
	}
	return t.tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"followers_count": stats.FollowersCount,
			"following_count": stats.FollowingCount,
		}),
	}).Create(&user).Error
}
