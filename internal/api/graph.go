package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/memehub/memehub/internal/graph"
	"github.com/memehub/memehub/pkg/logging"
)

// GraphAPI exposes the follow graph service over JSON-RPC
type GraphAPI struct {
	service *graph.Service
	logger  *zap.Logger
}

// NewGraphAPI creates a new graph API
func NewGraphAPI(service *graph.Service) *GraphAPI {
	return &GraphAPI{
		service: service,
		logger:  logging.GetLogger().With(zap.String("component", "api-graph")),
	}
}

type followParams struct {
	FollowerID  string `json:"follower_id"`
	FollowingID string `json:"following_id"`
}

func (p *followParams) validate() error {
	if p.FollowerID == "" || p.FollowingID == "" {
		return fmt.Errorf("follower_id and following_id are required")
	}
	return nil
}

type userParams struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

type batchParams struct {
	FollowerID string   `json:"follower_id"`
	TargetIDs  []string `json:"target_ids"`
}

type edgeEntry struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Follow handles graph.follow
func (g *GraphAPI) Follow(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p followParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := g.service.Follow(c.Request.Context(), p.FollowerID, p.FollowingID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"ok": true}, nil
}

// Unfollow handles graph.unfollow
func (g *GraphAPI) Unfollow(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p followParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := g.service.Unfollow(c.Request.Context(), p.FollowerID, p.FollowingID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"ok": true}, nil
}

// IsFollowing handles graph.is_following
func (g *GraphAPI) IsFollowing(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p followParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	following, err := g.service.IsFollowing(c.Request.Context(), p.FollowerID, p.FollowingID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"following": following}, nil
}

// GetStats handles graph.get_stats
func (g *GraphAPI) GetStats(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p userParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	stats, err := g.service.GetStats(c.Request.Context(), p.UserID)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// BatchIsFollowing handles graph.batch_is_following
func (g *GraphAPI) BatchIsFollowing(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p batchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.FollowerID == "" {
		return nil, fmt.Errorf("follower_id is required")
	}
	result, err := g.service.BatchIsFollowing(c.Request.Context(), p.FollowerID, p.TargetIDs)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetFollowers handles graph.get_followers
func (g *GraphAPI) GetFollowers(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p userParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	edges, err := g.service.GetFollowers(c.Request.Context(), p.UserID, p.Limit)
	if err != nil {
		return nil, err
	}
	result := make([]edgeEntry, 0, len(edges))
	for _, edge := range edges {
		result = append(result, edgeEntry{UserID: edge.FollowerID, CreatedAt: edge.CreatedAt})
	}
	return result, nil
}

// GetFollowing handles graph.get_following
func (g *GraphAPI) GetFollowing(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p userParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	edges, err := g.service.GetFollowing(c.Request.Context(), p.UserID, p.Limit)
	if err != nil {
		return nil, err
	}
	result := make([]edgeEntry, 0, len(edges))
	for _, edge := range edges {
		result = append(result, edgeEntry{UserID: edge.FollowingID, CreatedAt: edge.CreatedAt})
	}
	return result, nil
}
