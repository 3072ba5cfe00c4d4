package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/memehub/memehub/internal/achievements"
	"github.com/memehub/memehub/internal/cache"
	"github.com/memehub/memehub/internal/db"
	"github.com/memehub/memehub/internal/events"
	"github.com/memehub/memehub/internal/models"
	"github.com/memehub/memehub/pkg/logging"
	"github.com/memehub/memehub/pkg/telemetry"
)

var (
	// ErrSelfFollow is returned when a user tries to follow themselves
	ErrSelfFollow = errors.New("cannot follow self")

	// ErrAlreadyFollowing is returned when the edge already exists
	ErrAlreadyFollowing = errors.New("already following")

	// ErrNotFollowing is returned when unfollowing a non-existent edge
	ErrNotFollowing = errors.New("not following")
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000

	sharedStatsTTL = 5 * time.Minute
)

// Progression is the slice of the progression engine the graph service
// triggers after mutations. Calls are fire-and-forget; failures never affect
// the follow/unfollow outcome.
type Progression interface {
	TrackAction(ctx context.Context, userID string, criteria achievements.CriteriaType, observed int64, metadata achievements.Metadata) ([]string, error)
	RecalculateForUser(ctx context.Context, userID string) ([]string, error)
}

// SharedCache is the cross-process cache layer (redis) for stats. All use is
// best-effort; failures only cost a store read.
type SharedCache interface {
	Get(key string) (string, error)
	Set(key string, value interface{}, ttl time.Duration) error
	Delete(key string) error
}

// Service owns follow-edge mutation and the denormalized counters. Edge and
// counters move together in one store transaction, so a reader can never
// observe one without the other.
type Service struct {
	store       db.GraphStore
	cache       *TTLCache
	shared      SharedCache
	progression Progression
	dispatcher  *events.Dispatcher
	clock       Clock
	logger      *zap.Logger
}

// NewService creates a follow graph service. shared, progression and
// dispatcher may be nil; clock may be nil to use wall time.
func NewService(store db.GraphStore, cache *TTLCache, shared SharedCache, progression Progression, dispatcher *events.Dispatcher, clock Clock) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:       store,
		cache:       cache,
		shared:      shared,
		progression: progression,
		dispatcher:  dispatcher,
		clock:       clock,
		logger:      logging.GetLogger().With(zap.String("component", "follow-graph")),
	}
}

func pairKey(followerID, followingID string) string {
	return "edge:" + followerID + ":" + followingID
}

func statsKey(userID string) string {
	return "stats:" + userID
}

func sharedStatsKey(userID string) string {
	return cache.HashKey("stats", userID)
}

// Follow creates the edge follower -> following and increments both
// counters atomically. Returns ErrSelfFollow or ErrAlreadyFollowing on
// precondition failure; a concurrent second writer observing the just-created
// edge gets ErrAlreadyFollowing, never corrupt counters.
func (s *Service) Follow(ctx context.Context, followerID, followingID string) error {
	ctx, span := telemetry.StartSpan(ctx, "graph.follow")
	defer span.End()

	if followerID == followingID {
		return ErrSelfFollow
	}

	var followerStats, followingStats models.FollowStats
	err := s.store.RunInTx(ctx, func(tx db.GraphTx) error {
		// All reads precede all writes; the store rejects interleaving.
		exists, err := tx.EdgeExists(followerID, followingID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyFollowing
		}
		if followerStats, err = tx.UserStats(followerID); err != nil {
			return err
		}
		if followingStats, err = tx.UserStats(followingID); err != nil {
			return err
		}

		if err := tx.InsertEdge(&models.FollowEdge{
			FollowerID:  followerID,
			FollowingID: followingID,
			CreatedAt:   s.clock(),
		}); err != nil {
			return err
		}
		followerStats.FollowingCount++
		followingStats.FollowersCount++
		if err := tx.PutStats(followerID, followerStats); err != nil {
			return err
		}
		return tx.PutStats(followingID, followingStats)
	})
	if errors.Is(err, db.ErrDuplicateEdge) {
		// A concurrent follower of the same pair won the insert race.
		return ErrAlreadyFollowing
	}
	if err != nil {
		return err
	}

	s.refreshCache(followerID, followingID, true, followerStats, followingStats)
	s.afterMutation(events.TypeFollow, followerID, followingID, followerStats, followingStats, false)
	return nil
}

// Unfollow removes the edge and decrements both counters, clamped at zero as
// a drift safety net. Returns ErrNotFollowing when no edge exists.
func (s *Service) Unfollow(ctx context.Context, followerID, followingID string) error {
	ctx, span := telemetry.StartSpan(ctx, "graph.unfollow")
	defer span.End()

	var followerStats, followingStats models.FollowStats
	err := s.store.RunInTx(ctx, func(tx db.GraphTx) error {
		exists, err := tx.EdgeExists(followerID, followingID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFollowing
		}
		if followerStats, err = tx.UserStats(followerID); err != nil {
			return err
		}
		if followingStats, err = tx.UserStats(followingID); err != nil {
			return err
		}

		if err := tx.DeleteEdge(followerID, followingID); err != nil {
			return err
		}
		followerStats.FollowingCount = s.clampDecrement(followerID, "following_count", followerStats.FollowingCount)
		followingStats.FollowersCount = s.clampDecrement(followingID, "followers_count", followingStats.FollowersCount)
		if err := tx.PutStats(followerID, followerStats); err != nil {
			return err
		}
		return tx.PutStats(followingID, followingStats)
	})
	if err != nil {
		return err
	}

	s.refreshCache(followerID, followingID, false, followerStats, followingStats)
	s.afterMutation(events.TypeUnfollow, followerID, followingID, followerStats, followingStats, true)
	return nil
}

// clampDecrement decrements a counter, clamping at zero. A clamp means the
// counter had drifted from the true edge count, which is worth a warning.
func (s *Service) clampDecrement(userID, counter string, value int64) int64 {
	if value <= 0 {
		s.logger.Warn("Counter drift detected, clamping at zero",
			zap.String("user", userID),
			zap.String("counter", counter),
			zap.Int64("value", value))
		return 0
	}
	return value - 1
}

// IsFollowing reports whether follower -> following exists. Served from the
// TTL cache when valid; a just-committed mutation is always visible because
// mutations refresh the pair key before returning. The generation check
// keeps a value read before a concurrent mutation from being reinstated
// after it.
func (s *Service) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	key := pairKey(followerID, followingID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(bool), nil
	}
	gen := s.cache.Generation(key)
	following, err := s.store.HasEdge(ctx, followerID, followingID)
	if err != nil {
		return false, err
	}
	s.cache.SetIfGeneration(key, following, gen)
	return following, nil
}

// GetStats returns the denormalized follower/following counters for a user.
// Lookup order: in-process cache, shared redis cache, store.
func (s *Service) GetStats(ctx context.Context, userID string) (models.FollowStats, error) {
	key := statsKey(userID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(models.FollowStats), nil
	}
	gen := s.cache.Generation(key)
	if stats, ok := s.sharedStats(userID); ok {
		s.cache.SetIfGeneration(key, stats, gen)
		return stats, nil
	}
	stats, err := s.store.Stats(ctx, userID)
	if err != nil {
		return models.FollowStats{}, err
	}
	s.cache.SetIfGeneration(key, stats, gen)
	s.putSharedStats(userID, stats)
	return stats, nil
}

// BatchIsFollowing resolves follow status for many targets at once. Valid
// cache entries are served directly; the remainder is fetched in a single
// store read. Results are identical to repeated IsFollowing calls.
func (s *Service) BatchIsFollowing(ctx context.Context, followerID string, targetIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(targetIDs))
	var misses []string
	gens := make(map[string]uint64)
	for _, targetID := range targetIDs {
		key := pairKey(followerID, targetID)
		if cached, ok := s.cache.Get(key); ok {
			result[targetID] = cached.(bool)
		} else {
			misses = append(misses, targetID)
			gens[targetID] = s.cache.Generation(key)
		}
	}
	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := s.store.HasEdges(ctx, followerID, misses)
	if err != nil {
		return nil, err
	}
	for targetID, following := range fetched {
		result[targetID] = following
		s.cache.SetIfGeneration(pairKey(followerID, targetID), following, gens[targetID])
	}
	return result, nil
}

// GetFollowers returns the newest followers of a user, created_at descending.
func (s *Service) GetFollowers(ctx context.Context, userID string, limit int) ([]models.FollowEdge, error) {
	return s.store.ListFollowers(ctx, userID, clampLimit(limit))
}

// GetFollowing returns who the user follows, created_at descending.
func (s *Service) GetFollowing(ctx context.Context, userID string, limit int) ([]models.FollowEdge, error) {
	return s.store.ListFollowing(ctx, userID, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit < 1 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// refreshCache eagerly replaces the cached entries touched by a mutation so
// same-process reads see the new state immediately, inside the TTL window.
// The shared redis entries are rewritten too, so other processes pick up the
// committed counters.
func (s *Service) refreshCache(followerID, followingID string, following bool, followerStats, followingStats models.FollowStats) {
	s.cache.Invalidate(
		pairKey(followerID, followingID),
		statsKey(followerID),
		statsKey(followingID),
	)
	s.cache.Set(pairKey(followerID, followingID), following)
	s.cache.Set(statsKey(followerID), followerStats)
	s.cache.Set(statsKey(followingID), followingStats)
	s.putSharedStats(followerID, followerStats)
	s.putSharedStats(followingID, followingStats)
}

// sharedStats reads a stats entry from the shared redis cache. Any failure
// (disabled cache, miss, decode error) falls through to the store.
func (s *Service) sharedStats(userID string) (models.FollowStats, bool) {
	if s.shared == nil {
		return models.FollowStats{}, false
	}
	payload, err := s.shared.Get(sharedStatsKey(userID))
	if err != nil {
		return models.FollowStats{}, false
	}
	var stats models.FollowStats
	if err := json.Unmarshal([]byte(payload), &stats); err != nil {
		s.logger.Warn("Corrupt shared stats entry",
			zap.String("user", userID),
			zap.Error(err))
		return models.FollowStats{}, false
	}
	return stats, true
}

func (s *Service) putSharedStats(userID string, stats models.FollowStats) {
	if s.shared == nil {
		return
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.shared.Set(sharedStatsKey(userID), payload, sharedStatsTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		s.logger.Warn("Shared stats cache write failed",
			zap.String("user", userID),
			zap.Error(err))
	}
}

// afterMutation dispatches the detached side effects of a committed
// mutation: the domain event and the achievement re-evaluation for both
// participants. Best-effort; failures are logged, never propagated.
func (s *Service) afterMutation(eventType, followerID, followingID string, followerStats, followingStats models.FollowStats, unfollow bool) {
	if s.dispatcher != nil {
		s.dispatcher.Publish(events.Event{
			Type:     eventType,
			ActorID:  followerID,
			TargetID: followingID,
			At:       s.clock(),
		})
	}
	if s.progression != nil {
		go s.notifyProgression(followerID, followingID, followerStats, followingStats, unfollow)
	}
}

func (s *Service) notifyProgression(followerID, followingID string, followerStats, followingStats models.FollowStats, unfollow bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Progression notification panicked", zap.Any("panic", r))
		}
	}()

	// Detached work: not bound to the request context or its deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.progression.TrackAction(ctx, followingID, achievements.CriteriaFollowers, followingStats.FollowersCount, nil); err != nil {
		s.logSideEffect("followers achievement check", followingID, err)
	}
	if _, err := s.progression.TrackAction(ctx, followerID, achievements.CriteriaFollowing, followerStats.FollowingCount, nil); err != nil {
		s.logSideEffect("following achievement check", followerID, err)
	}
	if unfollow {
		// Shrinking metrics can drop an unlocked achievement below target.
		if _, err := s.progression.RecalculateForUser(ctx, followingID); err != nil {
			s.logSideEffect("recalculation", followingID, err)
		}
		if _, err := s.progression.RecalculateForUser(ctx, followerID); err != nil {
			s.logSideEffect("recalculation", followerID, err)
		}
	}
}

func (s *Service) logSideEffect(what, userID string, err error) {
	s.logger.Warn(fmt.Sprintf("Side effect failed: %s", what),
		zap.String("user", userID),
		zap.Error(err))
}
