package achievements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/memehub/memehub/internal/db"
	"github.com/memehub/memehub/internal/events"
	"github.com/memehub/memehub/internal/models"
	"github.com/memehub/memehub/pkg/logging"
	"github.com/memehub/memehub/pkg/telemetry"
)

var (
	// ErrRetryable marks a persistence failure the caller may retry (a
	// progress write failed before any unlock decision).
	ErrRetryable = errors.New("achievement update failed, retryable")

	// ErrInconsistent marks the accepted eventual-consistency gap: the
	// underlying metric update is committed but the unlock write failed. The
	// next TrackAction or RecalculateForUser for the user repairs it.
	ErrInconsistent = errors.New("metric committed but unlock write failed")
)

// Engine is the progression engine: it translates raw metric observations
// into unlock/revoke decisions against the catalog and persists progress for
// display.
type Engine struct {
	catalog    *Catalog
	store      db.AchievementStore
	flags      db.FlagStore
	users      db.UserSource
	metrics    db.MetricsSource
	stats      db.StatsReader
	dispatcher *events.Dispatcher
	clock      func() time.Time
	logger     *zap.Logger
}

// NewEngine creates a progression engine. users and dispatcher may be nil;
// clock may be nil to use wall time.
func NewEngine(
	catalog *Catalog,
	store db.AchievementStore,
	flags db.FlagStore,
	users db.UserSource,
	metrics db.MetricsSource,
	stats db.StatsReader,
	dispatcher *events.Dispatcher,
	clock func() time.Time,
) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		catalog:    catalog,
		store:      store,
		flags:      flags,
		users:      users,
		metrics:    metrics,
		stats:      stats,
		dispatcher: dispatcher,
		clock:      clock,
		logger:     logging.GetLogger().With(zap.String("component", "progression-engine")),
	}
}

// TrackAction records an observed metric for the user and unlocks every
// not-yet-unlocked achievement of the matching criteria type whose target the
// authoritative current value now meets. When the value crosses several tier
// thresholds at once, all crossed tiers unlock in this one call.
//
// A failed progress write is logged as retryable and does not stop the unlock
// check. A failed unlock insert is surfaced as ErrInconsistent: the metric
// stays committed and the gap is repaired by the next recalculation.
func (e *Engine) TrackAction(ctx context.Context, userID string, criteria CriteriaType, observed int64, metadata Metadata) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "achievements.track_action")
	defer span.End()

	defs := e.catalog.ByCriteria(criteria)
	if len(defs) == 0 {
		// Unimplemented or unknown criteria: explicit no-op.
		return nil, nil
	}

	var unlocked []string
	var firstErr error
	for _, def := range defs {
		exists, err := e.store.UnlockExists(ctx, userID, def.ID)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %v", ErrRetryable, err)
			}
			continue
		}
		if exists {
			continue
		}

		value, err := e.resolveValue(ctx, userID, def, observed, metadata)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %v", ErrRetryable, err)
			}
			continue
		}

		progress := &models.AchievementProgress{
			UserID:        userID,
			AchievementID: def.ID,
			CurrentValue:  value,
			TargetValue:   def.Target,
			LastUpdated:   e.clock(),
		}
		if err := e.store.UpsertProgress(ctx, progress); err != nil {
			// Progress is display state; the unlock check still runs.
			e.logger.Warn("Progress write failed",
				zap.String("user", userID),
				zap.String("achievement", def.ID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %v", ErrRetryable, err)
			}
		}

		if value < def.Target {
			continue
		}

		created, err := e.store.CreateUnlockIfAbsent(ctx, &models.AchievementUnlock{
			UserID:        userID,
			AchievementID: def.ID,
			UnlockedAt:    e.clock(),
		})
		if err != nil {
			e.logger.Error("Unlock write failed after metric commit",
				zap.String("user", userID),
				zap.String("achievement", def.ID),
				zap.Error(err))
			if firstErr == nil || errors.Is(firstErr, ErrRetryable) {
				firstErr = fmt.Errorf("%w: %s: %v", ErrInconsistent, def.ID, err)
			}
			continue
		}
		if !created {
			// Concurrent trigger won the race; nothing to report.
			continue
		}

		unlocked = append(unlocked, def.ID)
		e.emit(events.Event{
			Type:          events.TypeAchievementUnlocked,
			ActorID:       userID,
			AchievementID: def.ID,
			At:            e.clock(),
		})
	}

	return unlocked, firstErr
}

// RecalculateForUser re-evaluates every unlocked, non-permanent achievement
// of the user against its live value and revokes those now below target.
// Call it after any event that can reduce a tracked metric.
func (e *Engine) RecalculateForUser(ctx context.Context, userID string) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "achievements.recalculate")
	defer span.End()

	unlocks, err := e.store.ListUnlocks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetryable, err)
	}

	var revoked []string
	var firstErr error
	for _, unlock := range unlocks {
		def, ok := e.catalog.ByID(unlock.AchievementID)
		if !ok {
			// Definition removed from the catalog; leave the unlock alone.
			continue
		}
		if def.Permanent || !def.Criteria.IsLive() {
			continue
		}

		value, err := e.liveValue(ctx, userID, def.Criteria)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %v", ErrRetryable, err)
			}
			continue
		}

		progress := &models.AchievementProgress{
			UserID:        userID,
			AchievementID: def.ID,
			CurrentValue:  value,
			TargetValue:   def.Target,
			LastUpdated:   e.clock(),
		}
		if err := e.store.UpsertProgress(ctx, progress); err != nil {
			e.logger.Warn("Progress write failed during recalculation",
				zap.String("user", userID),
				zap.String("achievement", def.ID),
				zap.Error(err))
		}

		if value >= def.Target {
			continue
		}

		if err := e.store.DeleteUnlock(ctx, userID, def.ID); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %v", ErrRetryable, err)
			}
			continue
		}

		revoked = append(revoked, def.ID)
		e.logger.Info("Achievement revoked",
			zap.String("user", userID),
			zap.String("achievement", def.ID),
			zap.Int64("value", value),
			zap.Int64("target", def.Target))
		e.emit(events.Event{
			Type:          events.TypeAchievementRevoked,
			ActorID:       userID,
			AchievementID: def.ID,
			At:            e.clock(),
		})
	}

	return revoked, firstErr
}

// MarkSeen clears the "new" flag on an unlock. No effect on grant/revoke state.
func (e *Engine) MarkSeen(ctx context.Context, userID, achievementID string) error {
	return e.store.MarkSeen(ctx, userID, achievementID)
}

// GetUserUnlocks returns the user's unlocked achievements, newest first.
func (e *Engine) GetUserUnlocks(ctx context.Context, userID string) ([]models.AchievementUnlock, error) {
	return e.store.ListUnlocks(ctx, userID)
}

// GetUserProgress returns the user's tracked progress records.
func (e *Engine) GetUserProgress(ctx context.Context, userID string) ([]models.AchievementProgress, error) {
	return e.store.ListProgress(ctx, userID)
}

// resolveValue computes the authoritative current value for a definition.
func (e *Engine) resolveValue(ctx context.Context, userID string, def Definition, observed int64, metadata Metadata) (int64, error) {
	criteria := def.Criteria
	switch {
	case criteria.IsPermanent():
		return e.permanentValue(ctx, userID, criteria, observed)
	case criteria.IsLive():
		return e.liveValue(ctx, userID, criteria)
	case criteria.IsWindowed():
		return e.windowedValue(ctx, userID, def, metadata)
	default:
		return 0, nil
	}
}

// permanentValue resolves a first-time flag, setting it on the first positive
// observation. The flag store is append-only, so the value never drops back.
// Profile completeness is judged against the stored profile, not the caller's
// claim.
func (e *Engine) permanentValue(ctx context.Context, userID string, criteria CriteriaType, observed int64) (int64, error) {
	done, err := e.flags.HasEverDone(ctx, userID, string(criteria))
	if err != nil {
		return 0, err
	}
	if done {
		return 1, nil
	}
	if criteria == CriteriaProfileComplete && e.users != nil {
		complete, err := e.profileComplete(ctx, userID)
		if err != nil {
			return 0, err
		}
		observed = 0
		if complete {
			observed = 1
		}
	}
	if observed <= 0 {
		return 0, nil
	}
	if err := e.flags.MarkEverDone(ctx, userID, string(criteria)); err != nil {
		return 0, err
	}
	return 1, nil
}

func (e *Engine) profileComplete(ctx context.Context, userID string) (bool, error) {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}
	return user.DisplayName != "" && user.Bio != "" && user.ProfileImage != "", nil
}

// liveValue recomputes a metric from current state. Cached counters on the
// profile are not trusted here; deletions must be able to reduce the value.
func (e *Engine) liveValue(ctx context.Context, userID string, criteria CriteriaType) (int64, error) {
	switch criteria {
	case CriteriaActiveMemes:
		return e.metrics.GetActiveContentCount(ctx, userID, "meme")
	case CriteriaCommentsMade:
		return e.metrics.GetActiveContentCount(ctx, userID, "comment")
	case CriteriaTotalLikes:
		return e.metrics.GetTotalReceivedCount(ctx, userID, "like")
	case CriteriaFollowers:
		stats, err := e.stats.Stats(ctx, userID)
		if err != nil {
			return 0, err
		}
		return stats.FollowersCount, nil
	case CriteriaFollowing:
		stats, err := e.stats.Stats(ctx, userID)
		if err != nil {
			return 0, err
		}
		return stats.FollowingCount, nil
	default:
		return 0, fmt.Errorf("criteria %s has no live source", criteria)
	}
}

// windowedValue accumulates metadata-driven criteria into the stored progress
// record. Values only grow during the window; revocation never applies.
func (e *Engine) windowedValue(ctx context.Context, userID string, def Definition, metadata Metadata) (int64, error) {
	existing, err := e.store.GetProgress(ctx, userID, def.ID)
	if err != nil {
		return 0, err
	}
	var current int64
	if existing != nil {
		current = existing.CurrentValue
	}

	switch def.Criteria {
	case CriteriaNightOwl:
		md, ok := metadata.(NightOwlMetadata)
		if !ok {
			return current, nil
		}
		if md.Hour >= nightOwlStart && md.Hour <= nightOwlEnd {
			current++
		}
		return current, nil
	case CriteriaDailyCombo:
		md, ok := metadata.(DailyComboMetadata)
		if !ok {
			return current, nil
		}
		// A new day restarts the combo; the stored record's update date
		// tells us which day the accumulated value belongs to.
		if existing != nil && md.Day != "" && existing.LastUpdated.UTC().Format("2006-01-02") != md.Day {
			current = 0
		}
		if md.Unlocks > current {
			current = md.Unlocks
		}
		return current, nil
	default:
		return current, nil
	}
}

func (e *Engine) emit(event events.Event) {
	if e.dispatcher != nil {
		e.dispatcher.Publish(event)
	}
}
