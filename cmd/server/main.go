package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/memehub/memehub/internal/achievements"
	"github.com/memehub/memehub/internal/api"
	"github.com/memehub/memehub/internal/cache"
	"github.com/memehub/memehub/internal/db"
	"github.com/memehub/memehub/internal/events"
	"github.com/memehub/memehub/internal/graph"
	"github.com/memehub/memehub/pkg/config"
	"github.com/memehub/memehub/pkg/logging"
	"github.com/memehub/memehub/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Memehub Engine")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Connect to the database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Connect to Redis (optional)
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	// Event dispatcher with best-effort sinks
	sinks := []events.Sink{events.NewLogSink()}
	if redisCache != nil {
		sinks = append(sinks, events.NewRedisSink(redisCache, "events"))
	}
	dispatcher := events.NewDispatcher(cfg.Achievements.EventBuffer, sinks...)
	defer dispatcher.Close()

	// Wire the progression engine
	repo := db.NewRepository(database.DB)
	graphStore := db.NewGraphStore(database.DB, cfg.Graph.TxMaxAttempts)
	engine := achievements.NewEngine(
		achievements.DefaultCatalog(),
		db.NewAchievementRepository(repo),
		db.NewEventRepository(repo),
		db.NewUserRepository(repo),
		db.NewMetricsRepository(repo),
		graphStore,
		dispatcher,
		nil,
	)

	// Wire the follow graph service
	graphCache := graph.NewTTLCache(cfg.Graph.CacheTTL, nil)
	var sharedCache graph.SharedCache
	if redisCache != nil {
		sharedCache = redisCache
	}
	graphService := graph.NewService(graphStore, graphCache, sharedCache, engine, dispatcher, nil)

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	apiRouter := api.NewRouter(database, redisCache, graphService, engine)
	apiRouter.SetupRoutes(router)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
