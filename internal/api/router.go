package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/memehub/memehub/internal/achievements"
	"github.com/memehub/memehub/internal/cache"
	"github.com/memehub/memehub/internal/db"
	"github.com/memehub/memehub/internal/graph"
	"github.com/memehub/memehub/pkg/logging"
)

// Router sets up API routes
type Router struct {
	handler *JSONRPCHandler
	db      *db.DB
	cache   *cache.Cache
	logger  *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(database *db.DB, redisCache *cache.Cache, graphService *graph.Service, engine *achievements.Engine) *Router {
	handler := NewJSONRPCHandler()
	router := &Router{
		handler: handler,
		db:      database,
		cache:   redisCache,
		logger:  logging.GetLogger().With(zap.String("component", "api-router")),
	}

	router.registerMethods(graphService, engine)

	return router
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	// JSON-RPC endpoint
	engine.POST("/", r.handler.Handle)
}

// registerMethods registers all API methods
func (r *Router) registerMethods(graphService *graph.Service, engine *achievements.Engine) {
	// Follow graph API
	graphAPI := NewGraphAPI(graphService)

	r.handler.RegisterMethod("graph.follow", graphAPI.Follow)
	r.handler.RegisterMethod("graph.unfollow", graphAPI.Unfollow)
	r.handler.RegisterMethod("graph.is_following", graphAPI.IsFollowing)
	r.handler.RegisterMethod("graph.get_stats", graphAPI.GetStats)
	r.handler.RegisterMethod("graph.batch_is_following", graphAPI.BatchIsFollowing)
	r.handler.RegisterMethod("graph.get_followers", graphAPI.GetFollowers)
	r.handler.RegisterMethod("graph.get_following", graphAPI.GetFollowing)

	// Progression engine API
	achievementsAPI := NewAchievementsAPI(engine)

	r.handler.RegisterMethod("achievements.track_action", achievementsAPI.TrackAction)
	r.handler.RegisterMethod("achievements.recalculate", achievementsAPI.Recalculate)
	r.handler.RegisterMethod("achievements.mark_seen", achievementsAPI.MarkSeen)
	r.handler.RegisterMethod("achievements.get_unlocks", achievementsAPI.GetUnlocks)
	r.handler.RegisterMethod("achievements.get_progress", achievementsAPI.GetProgress)
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	status := "OK"
	code := 200
	if r.db != nil {
		if err := r.db.Health(c.Request.Context()); err != nil {
			status = "DEGRADED"
			code = 503
		}
	}
	cacheStatus := "disabled"
	if r.cache != nil {
		cacheStatus = "OK"
		if err := r.cache.Health(c.Request.Context()); err != nil {
			// Redis being down does not fail the health check
			cacheStatus = "DOWN"
		}
	}
	c.JSON(code, gin.H{
		"status":  status,
		"cache":   cacheStatus,
		"service": "memehub-engine",
	})
}
