package achievements

import (
	"fmt"
	"sort"
)

// Definition is a catalog entry. Definitions are immutable at runtime; the
// catalog is loaded once at process start.
type Definition struct {
	ID        string       `json:"id"`
	Category  string       `json:"category"`
	Tier      int          `json:"tier"`
	Criteria  CriteriaType `json:"criteria_type"`
	Target    int64        `json:"target"`
	Permanent bool         `json:"permanent"`
}

// Catalog is the static achievement definition set. Lookup by ID is O(1);
// lookup by criteria type returns every tier sharing that metric, ascending
// by target.
type Catalog struct {
	byID       map[string]Definition
	byCriteria map[CriteriaType][]Definition
}

// NewCatalog builds a catalog from definitions, validating targets and IDs.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		byID:       make(map[string]Definition, len(defs)),
		byCriteria: make(map[CriteriaType][]Definition),
	}
	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("achievement definition missing id")
		}
		if def.Target <= 0 {
			return nil, fmt.Errorf("achievement %s: target must be positive, got %d", def.ID, def.Target)
		}
		if _, dup := c.byID[def.ID]; dup {
			return nil, fmt.Errorf("duplicate achievement id: %s", def.ID)
		}
		if def.Criteria.IsPermanent() && !def.Permanent {
			return nil, fmt.Errorf("achievement %s: first-time criteria must be permanent", def.ID)
		}
		c.byID[def.ID] = def
		c.byCriteria[def.Criteria] = append(c.byCriteria[def.Criteria], def)
	}
	for criteria := range c.byCriteria {
		defs := c.byCriteria[criteria]
		sort.Slice(defs, func(i, j int) bool { return defs[i].Target < defs[j].Target })
	}
	return c, nil
}

// ByID returns the definition with the given id
func (c *Catalog) ByID(id string) (Definition, bool) {
	def, ok := c.byID[id]
	return def, ok
}

// ByCriteria returns all definitions sharing the criteria type, ascending by
// target. A single action can cross several of these tiers at once.
func (c *Catalog) ByCriteria(criteria CriteriaType) []Definition {
	return c.byCriteria[criteria]
}

// Len returns the number of definitions
func (c *Catalog) Len() int {
	return len(c.byID)
}

// DefaultCatalog returns the built-in definition set.
func DefaultCatalog() *Catalog {
	catalog, err := NewCatalog(defaultDefinitions)
	if err != nil {
		// The built-in set is validated by tests; a bad entry is a programming error.
		panic(err)
	}
	return catalog
}

var defaultDefinitions = []Definition{
	// First-time milestones
	{ID: "first_meme", Category: "content", Tier: 1, Criteria: CriteriaFirstMeme, Target: 1, Permanent: true},
	{ID: "first_like", Category: "engagement", Tier: 1, Criteria: CriteriaFirstLike, Target: 1, Permanent: true},
	{ID: "first_comment", Category: "engagement", Tier: 1, Criteria: CriteriaFirstComment, Target: 1, Permanent: true},
	{ID: "profile_complete", Category: "profile", Tier: 1, Criteria: CriteriaProfileComplete, Target: 1, Permanent: true},

	// Content creation (live, revocable on deletion)
	{ID: "meme_creator_5", Category: "content", Tier: 1, Criteria: CriteriaActiveMemes, Target: 5},
	{ID: "meme_creator_20", Category: "content", Tier: 2, Criteria: CriteriaActiveMemes, Target: 20},
	{ID: "meme_machine", Category: "content", Tier: 3, Criteria: CriteriaActiveMemes, Target: 100},

	// Social graph (live, revocable on unfollow)
	{ID: "social_connector", Category: "social", Tier: 1, Criteria: CriteriaFollowers, Target: 10},
	{ID: "influencer", Category: "social", Tier: 2, Criteria: CriteriaFollowers, Target: 50},
	{ID: "mega_influencer", Category: "social", Tier: 3, Criteria: CriteriaFollowers, Target: 100},
	{ID: "meme_celebrity", Category: "social", Tier: 4, Criteria: CriteriaFollowers, Target: 500},
	{ID: "active_follower", Category: "social", Tier: 1, Criteria: CriteriaFollowing, Target: 10},
	{ID: "community_regular", Category: "social", Tier: 2, Criteria: CriteriaFollowing, Target: 100},

	// Engagement received (live)
	{ID: "crowd_pleaser", Category: "engagement", Tier: 1, Criteria: CriteriaTotalLikes, Target: 10},
	{ID: "like_magnet", Category: "engagement", Tier: 2, Criteria: CriteriaTotalLikes, Target: 100},
	{ID: "viral_sensation", Category: "engagement", Tier: 3, Criteria: CriteriaTotalLikes, Target: 1000},
	{ID: "conversation_starter", Category: "engagement", Tier: 1, Criteria: CriteriaCommentsMade, Target: 10},
	{ID: "comment_veteran", Category: "engagement", Tier: 2, Criteria: CriteriaCommentsMade, Target: 100},

	// Windowed specials (monotonic, not revocable)
	{ID: "night_owl", Category: "special", Tier: 1, Criteria: CriteriaNightOwl, Target: 5, Permanent: true},
	{ID: "combo_master", Category: "special", Tier: 1, Criteria: CriteriaDailyCombo, Target: 3, Permanent: true},
}
