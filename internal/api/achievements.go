package api

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/memehub/memehub/internal/achievements"
	"github.com/memehub/memehub/pkg/logging"
)

// AchievementsAPI exposes the progression engine over JSON-RPC
type AchievementsAPI struct {
	engine *achievements.Engine
	logger *zap.Logger
}

// NewAchievementsAPI creates a new achievements API
func NewAchievementsAPI(engine *achievements.Engine) *AchievementsAPI {
	return &AchievementsAPI{
		engine: engine,
		logger: logging.GetLogger().With(zap.String("component", "api-achievements")),
	}
}

type trackActionParams struct {
	UserID       string               `json:"user_id"`
	CriteriaType string               `json:"criteria_type"`
	Value        int64                `json:"value"`
	Metadata     *trackActionMetadata `json:"metadata,omitempty"`
}

// trackActionMetadata is the wire shape for criteria metadata; it is turned
// into the criteria-specific variant before reaching the engine.
type trackActionMetadata struct {
	Hour    *int   `json:"hour,omitempty"`
	Day     string `json:"day,omitempty"`
	Unlocks *int64 `json:"unlocks,omitempty"`
}

func (p *trackActionParams) metadata() achievements.Metadata {
	if p.Metadata == nil {
		return nil
	}
	switch achievements.CriteriaType(p.CriteriaType) {
	case achievements.CriteriaNightOwl:
		if p.Metadata.Hour != nil {
			return achievements.NightOwlMetadata{Hour: *p.Metadata.Hour}
		}
	case achievements.CriteriaDailyCombo:
		if p.Metadata.Unlocks != nil {
			return achievements.DailyComboMetadata{Day: p.Metadata.Day, Unlocks: *p.Metadata.Unlocks}
		}
	}
	return nil
}

type markSeenParams struct {
	UserID        string `json:"user_id"`
	AchievementID string `json:"achievement_id"`
}

// TrackAction handles achievements.track_action
func (a *AchievementsAPI) TrackAction(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p trackActionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.UserID == "" || p.CriteriaType == "" {
		return nil, fmt.Errorf("user_id and criteria_type are required")
	}
	unlocked, err := a.engine.TrackAction(
		c.Request.Context(),
		p.UserID,
		achievements.CriteriaType(p.CriteriaType),
		p.Value,
		p.metadata(),
	)
	if err != nil {
		return nil, err
	}
	if unlocked == nil {
		unlocked = []string{}
	}
	return map[string]interface{}{"unlocked": unlocked}, nil
}

// Recalculate handles achievements.recalculate
func (a *AchievementsAPI) Recalculate(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p userParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	revoked, err := a.engine.RecalculateForUser(c.Request.Context(), p.UserID)
	if err != nil {
		return nil, err
	}
	if revoked == nil {
		revoked = []string{}
	}
	return map[string]interface{}{"revoked": revoked}, nil
}

// MarkSeen handles achievements.mark_seen
func (a *AchievementsAPI) MarkSeen(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p markSeenParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.UserID == "" || p.AchievementID == "" {
		return nil, fmt.Errorf("user_id and achievement_id are required")
	}
	if err := a.engine.MarkSeen(c.Request.Context(), p.UserID, p.AchievementID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"ok": true}, nil
}

// GetUnlocks handles achievements.get_unlocks
func (a *AchievementsAPI) GetUnlocks(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p userParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	unlocks, err := a.engine.GetUserUnlocks(c.Request.Context(), p.UserID)
	if err != nil {
		return nil, err
	}
	return unlocks, nil
}

// GetProgress handles achievements.get_progress
func (a *AchievementsAPI) GetProgress(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p userParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	progress, err := a.engine.GetUserProgress(c.Request.Context(), p.UserID)
	if err != nil {
		return nil, err
	}
	return progress, nil
}
