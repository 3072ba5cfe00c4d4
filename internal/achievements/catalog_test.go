package achievements

import (
	"testing"
)

func TestDefaultCatalogValid(t *testing.T) {
	catalog := DefaultCatalog()
	if catalog.Len() == 0 {
		t.Fatal("default catalog is empty")
	}

	// Every first-time definition must be permanent
	for _, def := range defaultDefinitions {
		if def.Criteria.IsPermanent() && !def.Permanent {
			t.Errorf("%s: first-time criteria but not permanent", def.ID)
		}
		if def.Target <= 0 {
			t.Errorf("%s: non-positive target %d", def.ID, def.Target)
		}
	}
}

func TestCatalogByID(t *testing.T) {
	catalog := DefaultCatalog()

	def, ok := catalog.ByID("meme_creator_5")
	if !ok {
		t.Fatal("meme_creator_5 not found")
	}
	if def.Target != 5 || def.Criteria != CriteriaActiveMemes || def.Permanent {
		t.Errorf("meme_creator_5 = %+v", def)
	}

	if _, ok := catalog.ByID("no_such_achievement"); ok {
		t.Error("unknown id should not resolve")
	}
}

func TestCatalogByCriteriaSorted(t *testing.T) {
	catalog := DefaultCatalog()

	defs := catalog.ByCriteria(CriteriaFollowers)
	if len(defs) != 4 {
		t.Fatalf("expected 4 follower tiers, got %d", len(defs))
	}
	for i := 1; i < len(defs); i++ {
		if defs[i].Target <= defs[i-1].Target {
			t.Errorf("tiers not ascending by target: %d after %d", defs[i].Target, defs[i-1].Target)
		}
	}
	if defs[0].ID != "social_connector" || defs[0].Target != 10 {
		t.Errorf("lowest follower tier = %+v, want social_connector(10)", defs[0])
	}
}

func TestCatalogUnimplementedCriteriaEmpty(t *testing.T) {
	catalog := DefaultCatalog()

	for _, criteria := range []CriteriaType{
		CriteriaViralMeme,
		CriteriaTrendingCreator,
		CriteriaConsistencyStreak,
		CriteriaLeaderboardRanking,
	} {
		if defs := catalog.ByCriteria(criteria); len(defs) != 0 {
			t.Errorf("%s should have no definitions, got %d", criteria, len(defs))
		}
	}
}

func TestNewCatalogValidation(t *testing.T) {
	tests := []struct {
		name string
		defs []Definition
	}{
		{
			name: "zero target",
			defs: []Definition{{ID: "bad", Criteria: CriteriaActiveMemes, Target: 0}},
		},
		{
			name: "missing id",
			defs: []Definition{{Criteria: CriteriaActiveMemes, Target: 1}},
		},
		{
			name: "duplicate id",
			defs: []Definition{
				{ID: "dup", Criteria: CriteriaActiveMemes, Target: 1},
				{ID: "dup", Criteria: CriteriaActiveMemes, Target: 2},
			},
		},
		{
			name: "first-time criteria not permanent",
			defs: []Definition{{ID: "bad", Criteria: CriteriaFirstMeme, Target: 1, Permanent: false}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.defs); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCriteriaClasses(t *testing.T) {
	tests := []struct {
		criteria  CriteriaType
		permanent bool
		live      bool
		windowed  bool
	}{
		{CriteriaFirstMeme, true, false, false},
		{CriteriaProfileComplete, true, false, false},
		{CriteriaActiveMemes, false, true, false},
		{CriteriaFollowers, false, true, false},
		{CriteriaNightOwl, false, false, true},
		{CriteriaDailyCombo, false, false, true},
		{CriteriaViralMeme, false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.criteria), func(t *testing.T) {
			if tt.criteria.IsPermanent() != tt.permanent {
				t.Errorf("IsPermanent() = %v, want %v", tt.criteria.IsPermanent(), tt.permanent)
			}
			if tt.criteria.IsLive() != tt.live {
				t.Errorf("IsLive() = %v, want %v", tt.criteria.IsLive(), tt.live)
			}
			if tt.criteria.IsWindowed() != tt.windowed {
				t.Errorf("IsWindowed() = %v, want %v", tt.criteria.IsWindowed(), tt.windowed)
			}
		})
	}
}
