package achievements

// CriteriaType identifies the measurable condition an achievement is defined
// over. Types fall into three policy classes: permanent first-time flags,
// live metrics recomputed from current state, and time-windowed accumulators.
type CriteriaType string

const (
	// Permanent first-time criteria, backed by append-only historical flags.
	// Once true, always true; never revoked.
	CriteriaFirstMeme       CriteriaType = "first_meme"
	CriteriaFirstLike       CriteriaType = "first_like"
	CriteriaFirstComment    CriteriaType = "first_comment"
	CriteriaProfileComplete CriteriaType = "profile_complete"

	// Live criteria, recomputed from current non-deleted state at evaluation
	// time. Deletions reduce them, so matching achievements are revocable.
	CriteriaActiveMemes  CriteriaType = "active_memes_uploaded"
	CriteriaTotalLikes   CriteriaType = "total_likes_received"
	CriteriaCommentsMade CriteriaType = "comments_made"
	CriteriaFollowers    CriteriaType = "followers_count"
	CriteriaFollowing    CriteriaType = "following_count"

	// Windowed criteria, accumulated from action metadata into their own
	// progress records. Monotonic within the window; not revocable.
	CriteriaNightOwl   CriteriaType = "night_owl_upload"
	CriteriaDailyCombo CriteriaType = "daily_combo"

	// Known but intentionally unimplemented criteria. They have no catalog
	// entries, so tracking them is a no-op rather than an error.
	CriteriaViralMeme          CriteriaType = "viral_meme"
	CriteriaTrendingCreator    CriteriaType = "trending_creator"
	CriteriaConsistencyStreak  CriteriaType = "consistency_streak"
	CriteriaLeaderboardRanking CriteriaType = "achievement_leaderboard"
)

// IsPermanent reports whether the criteria class is permanent/first-time
func (c CriteriaType) IsPermanent() bool {
	switch c {
	case CriteriaFirstMeme, CriteriaFirstLike, CriteriaFirstComment, CriteriaProfileComplete:
		return true
	}
	return false
}

// IsLive reports whether the criteria value is recomputed from current state
func (c CriteriaType) IsLive() bool {
	switch c {
	case CriteriaActiveMemes, CriteriaTotalLikes, CriteriaCommentsMade,
		CriteriaFollowers, CriteriaFollowing:
		return true
	}
	return false
}

// IsWindowed reports whether the criteria accumulates from action metadata
func (c CriteriaType) IsWindowed() bool {
	switch c {
	case CriteriaNightOwl, CriteriaDailyCombo:
		return true
	}
	return false
}

// Metadata carries criteria-specific context for an action. Each windowed
// criteria type has its own payload struct; there is no untyped bag.
type Metadata interface {
	criteriaMetadata()
}

// NightOwlMetadata accompanies an upload action with its local hour.
type NightOwlMetadata struct {
	Hour int
}

func (NightOwlMetadata) criteriaMetadata() {}

// DailyComboMetadata accompanies an unlock-counting action with the number of
// unlocks observed so far in the current day.
type DailyComboMetadata struct {
	Day     string
	Unlocks int64
}

func (DailyComboMetadata) criteriaMetadata() {}

// nightOwlStart and nightOwlEnd bound the hour range counted as a night upload.
const (
	nightOwlStart = 0
	nightOwlEnd   = 5
)
