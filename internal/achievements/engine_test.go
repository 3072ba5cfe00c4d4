package achievements

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/memehub/memehub/internal/models"
)

// fakeAchievementStore is an in-memory AchievementStore.
type fakeAchievementStore struct {
	progress   map[string]models.AchievementProgress
	unlocks    map[string]models.AchievementUnlock
	failUnlock bool
}

func newFakeAchievementStore() *fakeAchievementStore {
	return &fakeAchievementStore{
		progress: make(map[string]models.AchievementProgress),
		unlocks:  make(map[string]models.AchievementUnlock),
	}
}

func recordKey(userID, achievementID string) string {
	return userID + "|" + achievementID
}

func (s *fakeAchievementStore) GetProgress(ctx context.Context, userID, achievementID string) (*models.AchievementProgress, error) {
	if p, ok := s.progress[recordKey(userID, achievementID)]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *fakeAchievementStore) UpsertProgress(ctx context.Context, progress *models.AchievementProgress) error {
	s.progress[recordKey(progress.UserID, progress.AchievementID)] = *progress
	return nil
}

func (s *fakeAchievementStore) CreateUnlockIfAbsent(ctx context.Context, unlock *models.AchievementUnlock) (bool, error) {
	if s.failUnlock {
		return false, errors.New("unlock write failed")
	}
	key := recordKey(unlock.UserID, unlock.AchievementID)
	if _, ok := s.unlocks[key]; ok {
		return false, nil
	}
	s.unlocks[key] = *unlock
	return true, nil
}

func (s *fakeAchievementStore) DeleteUnlock(ctx context.Context, userID, achievementID string) error {
	delete(s.unlocks, recordKey(userID, achievementID))
	return nil
}

func (s *fakeAchievementStore) MarkSeen(ctx context.Context, userID, achievementID string) error {
	key := recordKey(userID, achievementID)
	if unlock, ok := s.unlocks[key]; ok {
		unlock.Seen = true
		s.unlocks[key] = unlock
	}
	return nil
}

func (s *fakeAchievementStore) UnlockExists(ctx context.Context, userID, achievementID string) (bool, error) {
	_, ok := s.unlocks[recordKey(userID, achievementID)]
	return ok, nil
}

func (s *fakeAchievementStore) ListUnlocks(ctx context.Context, userID string) ([]models.AchievementUnlock, error) {
	var unlocks []models.AchievementUnlock
	for _, unlock := range s.unlocks {
		if unlock.UserID == userID {
			unlocks = append(unlocks, unlock)
		}
	}
	sort.Slice(unlocks, func(i, j int) bool { return unlocks[i].UnlockedAt.After(unlocks[j].UnlockedAt) })
	return unlocks, nil
}

func (s *fakeAchievementStore) ListProgress(ctx context.Context, userID string) ([]models.AchievementProgress, error) {
	var progress []models.AchievementProgress
	for _, p := range s.progress {
		if p.UserID == userID {
			progress = append(progress, p)
		}
	}
	sort.Slice(progress, func(i, j int) bool { return progress[i].AchievementID < progress[j].AchievementID })
	return progress, nil
}

// fakeFlagStore is an append-only flag store.
type fakeFlagStore struct {
	flags map[string]bool
}

func newFakeFlagStore() *fakeFlagStore {
	return &fakeFlagStore{flags: make(map[string]bool)}
}

func (s *fakeFlagStore) HasEverDone(ctx context.Context, userID, eventType string) (bool, error) {
	return s.flags[userID+"|"+eventType], nil
}

func (s *fakeFlagStore) MarkEverDone(ctx context.Context, userID, eventType string) error {
	s.flags[userID+"|"+eventType] = true
	return nil
}

// fakeMetrics resolves live content metrics from settable values.
type fakeMetrics struct {
	activeMemes  map[string]int64
	commentsMade map[string]int64
	likes        map[string]int64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		activeMemes:  make(map[string]int64),
		commentsMade: make(map[string]int64),
		likes:        make(map[string]int64),
	}
}

func (m *fakeMetrics) GetActiveContentCount(ctx context.Context, userID, kind string) (int64, error) {
	switch kind {
	case "meme":
		return m.activeMemes[userID], nil
	case "comment":
		return m.commentsMade[userID], nil
	}
	return 0, nil
}

func (m *fakeMetrics) GetTotalReceivedCount(ctx context.Context, userID, metric string) (int64, error) {
	if metric == "like" {
		return m.likes[userID], nil
	}
	return 0, nil
}

// fakeStats resolves follow counters.
type fakeStats struct {
	stats map[string]models.FollowStats
}

func newFakeStats() *fakeStats {
	return &fakeStats{stats: make(map[string]models.FollowStats)}
}

func (s *fakeStats) Stats(ctx context.Context, userID string) (models.FollowStats, error) {
	return s.stats[userID], nil
}

// fakeUsers backs profile lookups.
type fakeUsers struct {
	users map[string]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*models.User)}
}

func (u *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return u.users[id], nil
}

type engineFixture struct {
	engine  *Engine
	store   *fakeAchievementStore
	flags   *fakeFlagStore
	users   *fakeUsers
	metrics *fakeMetrics
	stats   *fakeStats
	now     time.Time
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		store:   newFakeAchievementStore(),
		flags:   newFakeFlagStore(),
		users:   newFakeUsers(),
		metrics: newFakeMetrics(),
		stats:   newFakeStats(),
		now:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.engine = NewEngine(
		DefaultCatalog(),
		f.store,
		f.flags,
		f.users,
		f.metrics,
		f.stats,
		nil,
		func() time.Time { return f.now },
	)
	return f
}

func TestMultiTierJump(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	// Followers jump from 0 to 120 in one update
	f.stats.stats["u1"] = models.FollowStats{FollowersCount: 120}

	unlocked, err := f.engine.TrackAction(ctx, "u1", CriteriaFollowers, 120, nil)
	if err != nil {
		t.Fatalf("TrackAction failed: %v", err)
	}

	want := map[string]bool{"social_connector": true, "influencer": true, "mega_influencer": true}
	if len(unlocked) != 3 {
		t.Fatalf("unlocked %v, want all three crossed tiers", unlocked)
	}
	for _, id := range unlocked {
		if !want[id] {
			t.Errorf("unexpected unlock %s", id)
		}
	}

	// The 500 tier was not crossed
	if exists, _ := f.store.UnlockExists(ctx, "u1", "meme_celebrity"); exists {
		t.Error("meme_celebrity should not unlock at 120 followers")
	}
}

func TestPermanentAchievementMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	// First upload
	unlocked, err := f.engine.TrackAction(ctx, "u1", CriteriaFirstMeme, 1, nil)
	if err != nil {
		t.Fatalf("TrackAction failed: %v", err)
	}
	if len(unlocked) != 1 || unlocked[0] != "first_meme" {
		t.Fatalf("unlocked %v, want [first_meme]", unlocked)
	}

	// All content deleted; recalculation must not touch the permanent unlock
	f.metrics.activeMemes["u1"] = 0
	revoked, err := f.engine.RecalculateForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("RecalculateForUser failed: %v", err)
	}
	if len(revoked) != 0 {
		t.Errorf("permanent achievement revoked: %v", revoked)
	}
	if exists, _ := f.store.UnlockExists(ctx, "u1", "first_meme"); !exists {
		t.Error("first_meme unlock disappeared")
	}
}

func TestRevocableLiveAchievementCycle(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	// Reach 5 active memes: unlock
	f.metrics.activeMemes["u1"] = 5
	unlocked, err := f.engine.TrackAction(ctx, "u1", CriteriaActiveMemes, 5, nil)
	if err != nil {
		t.Fatalf("TrackAction failed: %v", err)
	}
	if len(unlocked) != 1 || unlocked[0] != "meme_creator_5" {
		t.Fatalf("unlocked %v, want [meme_creator_5]", unlocked)
	}

	// Delete down to 4: revoke
	f.metrics.activeMemes["u1"] = 4
	revoked, err := f.engine.RecalculateForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("RecalculateForUser failed: %v", err)
	}
	if len(revoked) != 1 || revoked[0] != "meme_creator_5" {
		t.Fatalf("revoked %v, want [meme_creator_5]", revoked)
	}
	if exists, _ := f.store.UnlockExists(ctx, "u1", "meme_creator_5"); exists {
		t.Error("unlock should be deleted after revocation")
	}

	// Re-upload to 5: unlock again
	f.metrics.activeMemes["u1"] = 5
	unlocked, err = f.engine.TrackAction(ctx, "u1", CriteriaActiveMemes, 5, nil)
	if err != nil {
		t.Fatalf("TrackAction failed: %v", err)
	}
	if len(unlocked) != 1 || unlocked[0] != "meme_creator_5" {
		t.Errorf("re-unlock returned %v, want [meme_creator_5]", unlocked)
	}
}

func TestTrackActionIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	f.stats.stats["u1"] = models.FollowStats{FollowersCount: 15}

	first, err := f.engine.TrackAction(ctx, "u1", CriteriaFollowers, 15, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatalf("first call unlocked %v", first)
	}

	second, err := f.engine.TrackAction(ctx, "u1", CriteriaFollowers, 15, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Errorf("second call re-unlocked %v", second)
	}
}

func TestUnimplementedCriteriaNoOp(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	unlocked, err := f.engine.TrackAction(ctx, "u1", CriteriaViralMeme, 9999, nil)
	if err != nil {
		t.Errorf("unimplemented criteria should not error: %v", err)
	}
	if len(unlocked) != 0 {
		t.Errorf("unimplemented criteria unlocked %v", unlocked)
	}
}

func TestLiveValueOverridesObserved(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	// Caller claims 100 but the authoritative count is 2: nothing unlocks.
	f.metrics.activeMemes["u1"] = 2
	unlocked, err := f.engine.TrackAction(ctx, "u1", CriteriaActiveMemes, 100, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(unlocked) != 0 {
		t.Errorf("stale observed value caused unlocks: %v", unlocked)
	}

	progress, _ := f.engine.GetUserProgress(ctx, "u1")
	for _, p := range progress {
		if p.AchievementID == "meme_creator_5" && p.CurrentValue != 2 {
			t.Errorf("progress stored %d, want authoritative 2", p.CurrentValue)
		}
	}
}

func TestNightOwlAccumulation(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	// Four night uploads and one daytime upload
	for i := 0; i < 4; i++ {
		if _, err := f.engine.TrackAction(ctx, "u1", CriteriaNightOwl, 1, NightOwlMetadata{Hour: 2}); err != nil {
			t.Fatal(err)
		}
	}
	if unlocked, _ := f.engine.TrackAction(ctx, "u1", CriteriaNightOwl, 1, NightOwlMetadata{Hour: 14}); len(unlocked) != 0 {
		t.Errorf("daytime upload unlocked %v", unlocked)
	}

	// Fifth night upload crosses the target
	unlocked, err := f.engine.TrackAction(ctx, "u1", CriteriaNightOwl, 1, NightOwlMetadata{Hour: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(unlocked) != 1 || unlocked[0] != "night_owl" {
		t.Errorf("unlocked %v, want [night_owl]", unlocked)
	}
}

func TestDailyComboFromMetadata(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	if unlocked, _ := f.engine.TrackAction(ctx, "u1", CriteriaDailyCombo, 0, DailyComboMetadata{Day: "2025-06-01", Unlocks: 2}); len(unlocked) != 0 {
		t.Errorf("2 unlocks should not cross target 3, got %v", unlocked)
	}

	unlocked, err := f.engine.TrackAction(ctx, "u1", CriteriaDailyCombo, 0, DailyComboMetadata{Day: "2025-06-01", Unlocks: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(unlocked) != 1 || unlocked[0] != "combo_master" {
		t.Errorf("unlocked %v, want [combo_master]", unlocked)
	}
}

func TestUnlockWriteFailureIsInconsistent(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	f.stats.stats["u1"] = models.FollowStats{FollowersCount: 15}
	f.store.failUnlock = true

	_, err := f.engine.TrackAction(ctx, "u1", CriteriaFollowers, 15, nil)
	if !errors.Is(err, ErrInconsistent) {
		t.Errorf("unlock write failure = %v, want ErrInconsistent", err)
	}

	// The gap repairs itself once the store recovers
	f.store.failUnlock = false
	unlocked, err := f.engine.TrackAction(ctx, "u1", CriteriaFollowers, 15, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(unlocked) != 1 || unlocked[0] != "social_connector" {
		t.Errorf("repair pass unlocked %v, want [social_connector]", unlocked)
	}
}

func TestMarkSeen(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	f.stats.stats["u1"] = models.FollowStats{FollowersCount: 15}
	if _, err := f.engine.TrackAction(ctx, "u1", CriteriaFollowers, 15, nil); err != nil {
		t.Fatal(err)
	}

	if err := f.engine.MarkSeen(ctx, "u1", "social_connector"); err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}

	unlocks, err := f.engine.GetUserUnlocks(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(unlocks) != 1 || !unlocks[0].Seen {
		t.Errorf("unlock not marked seen: %+v", unlocks)
	}
}

func TestDailyComboResetsOnNewDay(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	if _, err := f.engine.TrackAction(ctx, "u1", CriteriaDailyCombo, 0, DailyComboMetadata{Day: "2025-06-01", Unlocks: 2}); err != nil {
		t.Fatal(err)
	}

	// Next day: yesterday's accumulated 2 must not carry over.
	f.now = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	if _, err := f.engine.TrackAction(ctx, "u1", CriteriaDailyCombo, 0, DailyComboMetadata{Day: "2025-06-02", Unlocks: 1}); err != nil {
		t.Fatal(err)
	}
	progress, _ := f.engine.GetUserProgress(ctx, "u1")
	for _, p := range progress {
		if p.AchievementID == "combo_master" && p.CurrentValue != 1 {
			t.Errorf("combo progress after day change = %d, want 1", p.CurrentValue)
		}
	}

	// Reaching the target within the new day unlocks.
	unlocked, err := f.engine.TrackAction(ctx, "u1", CriteriaDailyCombo, 0, DailyComboMetadata{Day: "2025-06-02", Unlocks: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(unlocked) != 1 || unlocked[0] != "combo_master" {
		t.Errorf("unlocked %v, want [combo_master]", unlocked)
	}
}

func TestProfileCompleteResolvedFromProfile(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	// Partial profile: the caller's claim of completeness does not count.
	f.users.users["u1"] = &models.User{ID: "u1", Handle: "u1", DisplayName: "Meme Lord"}
	unlocked, err := f.engine.TrackAction(ctx, "u1", CriteriaProfileComplete, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(unlocked) != 0 {
		t.Errorf("partial profile unlocked %v", unlocked)
	}

	// Fill in the rest of the profile.
	f.users.users["u1"].Bio = "memes all day"
	f.users.users["u1"].ProfileImage = "https://cdn.example/u1.png"
	unlocked, err = f.engine.TrackAction(ctx, "u1", CriteriaProfileComplete, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(unlocked) != 1 || unlocked[0] != "profile_complete" {
		t.Errorf("unlocked %v, want [profile_complete]", unlocked)
	}

	// Permanent: clearing the profile later changes nothing.
	f.users.users["u1"].Bio = ""
	if revoked, _ := f.engine.RecalculateForUser(ctx, "u1"); len(revoked) != 0 {
		t.Errorf("profile_complete revoked: %v", revoked)
	}
}

func TestPermanentFlagSetOnce(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	// A zero observation does not set the flag
	if unlocked, _ := f.engine.TrackAction(ctx, "u1", CriteriaFirstLike, 0, nil); len(unlocked) != 0 {
		t.Errorf("zero observation unlocked %v", unlocked)
	}
	if done, _ := f.flags.HasEverDone(ctx, "u1", string(CriteriaFirstLike)); done {
		t.Error("flag set without a positive observation")
	}

	// A positive observation sets it; later observations are harmless
	if unlocked, _ := f.engine.TrackAction(ctx, "u1", CriteriaFirstLike, 1, nil); len(unlocked) != 1 {
		t.Error("first positive observation should unlock first_like")
	}
	if done, _ := f.flags.HasEverDone(ctx, "u1", string(CriteriaFirstLike)); !done {
		t.Error("flag should be set after positive observation")
	}
}
