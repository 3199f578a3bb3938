package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/client"
	"github.com/smartmeetingai/api/internal/config"
	"github.com/smartmeetingai/api/internal/handler"
	"github.com/smartmeetingai/api/internal/middleware"
	"github.com/smartmeetingai/api/internal/service"
	"github.com/smartmeetingai/api/internal/storage"
	"github.com/smartmeetingai/api/internal/store"
	ws "github.com/smartmeetingai/api/internal/websocket"
	"github.com/smartmeetingai/api/internal/worker"
	"github.com/smartmeetingai/api/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := newLogger(cfg.Server)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()

	// Redis is optional unless a Redis backed component is selected
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			zlog.Warn("redis not available", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
	}

	taskStore, err := newStore(cfg, redisClient, zlog)
	if err != nil {
		zlog.Fatal("failed to open task store", zap.Error(err))
	}

	// Media tree
	if err := os.MkdirAll(cfg.Storage.MediaDir, 0o755); err != nil {
		zlog.Fatal("failed to create media directory", zap.Error(err))
	}
	media := storage.NewLocalStore(afero.NewBasePathFs(afero.NewOsFs(), cfg.Storage.MediaDir), cfg.Server.PublicURL)

	var mirror storage.MediaStore
	if storage.R2Configured(&cfg.R2) {
		r2, err := storage.NewR2Store(ctx, &cfg.R2, zlog)
		if err != nil {
			zlog.Warn("R2 mirror disabled", zap.Error(err))
		} else {
			mirror = r2
		}
	}

	// External clients; unconfigured ones run in stub mode
	quickreel := client.NewQuickReelClient(&cfg.QuickReel, &cfg.HTTPClient, zlog)
	assemblyai := client.NewAssemblyAIClient(&cfg.AssemblyAI, &cfg.HTTPClient, zlog)
	openai := client.NewOpenAIClient(&cfg.OpenAI, &cfg.HTTPClient, zlog)
	runway := client.NewRunwayClient(&cfg.RunwayML, &cfg.HTTPClient, zlog)
	groq := client.NewGroqClient(&cfg.Groq, &cfg.HTTPClient, zlog)
	providers := []client.Provider{quickreel, assemblyai, openai, runway, groq}
	for _, p := range providers {
		if !p.IsConfigured() {
			zlog.Warn("provider not configured, using stub responses", zap.String("provider", p.Name()))
		}
	}

	// Initialize WebSocket hub
	hub := ws.NewHub(zlog)
	go hub.Run()

	orchestrator := worker.NewReelOrchestrator(taskStore, quickreel, media, hub, worker.OrchestratorConfig{
		ReelDelay:   time.Duration(cfg.Worker.ReelDelayMs) * time.Millisecond,
		CallTimeout: time.Duration(cfg.Worker.CallTimeout) * time.Second,
		WebhookURL:  cfg.Server.PublicURL + "/webhook",
	}, zlog)

	dispatcher, stopDispatcher := newDispatcher(cfg, redisClient != nil, orchestrator, zlog)

	// Initialize services
	generationService := service.NewGenerationService(taskStore, dispatcher, zlog)
	reconciler := service.NewReconciler(taskStore, quickreel, hub, zlog)
	contentService := service.NewContentService(taskStore, media, service.ContentProviders{
		Transcribers: []client.Transcriber{assemblyai},
		Images:       []client.ImageGenerator{openai, runway},
		Texts:        []client.TextGenerator{openai, groq},
	}, zlog)
	uploadService := service.NewUploadService(taskStore, media, mirror, zlog)

	sweeper := service.NewRetentionSweeper(taskStore, media, mirror, time.Duration(cfg.Retention.MaxAgeDays)*24*time.Hour, zlog)
	if err := sweeper.Start(cfg.Retention.Schedule); err != nil {
		zlog.Fatal("invalid retention schedule", zap.String("schedule", cfg.Retention.Schedule), zap.Error(err))
	}

	// Initialize handlers
	validate := validator.New()
	bodyLimit := cfg.Server.BodyLimitMB * 1024 * 1024
	handlers := &handler.Handlers{
		Upload:  handler.NewUploadHandler(uploadService, int64(bodyLimit), zlog),
		Reel:    handler.NewReelHandler(generationService, reconciler, taskStore, media, validate, zlog),
		Content: handler.NewContentHandler(contentService, validate, zlog),
		Admin:   handler.NewAdminHandler(taskStore, sweeper, providers, zlog),
	}

	rateLimiter := middleware.NewRateLimiter(redisClient, zlog)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    bodyLimit,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Media; uploads must be reachable by the clipping service
	app.Static("/uploads", filepath.Join(cfg.Storage.MediaDir, storage.DirUploads))
	for _, dir := range []string{storage.DirReels, storage.DirThumbnails, storage.DirPosters} {
		app.Static("/static/"+dir, filepath.Join(cfg.Storage.MediaDir, dir))
	}

	// API routes
	handler.RegisterRoutes(app, handlers, rateLimiter, cfg.RateLimit)
	handler.RegisterRoutes(app.Group("/api"), handlers, rateLimiter, cfg.RateLimit)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/tasks/:taskId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("taskId"))
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		zlog.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zlog.Error("server shutdown error", zap.Error(err))
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	zlog.Info("server starting",
		zap.String("addr", addr),
		zap.String("store", cfg.Storage.Backend),
		zap.String("dispatcher", cfg.Worker.Dispatcher),
	)
	if err := app.Listen(addr); err != nil {
		zlog.Error("server error", zap.Error(err))
	}

	sweeper.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := stopDispatcher(shutdownCtx); err != nil {
		zlog.Warn("background runs did not finish before shutdown", zap.Error(err))
	}
}

func newLogger(cfg config.ServerConfig) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.Env == "production" {
		zcfg = zap.NewProductionConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

func newStore(cfg *config.Config, redisClient *redis.Client, zlog *zap.Logger) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("storage backend redis requires REDIS_ADDR")
		}
		return store.NewRedisStore(redisClient, zlog), nil
	case "json", "":
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
			return nil, err
		}
		return store.NewJSONStore(afero.NewBasePathFs(afero.NewOsFs(), cfg.Storage.DataDir), zlog)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// newDispatcher returns the configured dispatcher and its shutdown function.
func newDispatcher(cfg *config.Config, haveRedis bool, runner worker.Runner, zlog *zap.Logger) (worker.Dispatcher, func(context.Context) error) {
	if cfg.Worker.Dispatcher != "asynq" {
		d := worker.NewGoroutineDispatcher(runner, cfg.Worker.PoolSize, zlog)
		return d, d.Shutdown
	}
	if !haveRedis {
		zlog.Fatal("worker dispatcher asynq requires REDIS_ADDR")
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.PoolSize,
		Queues: map[string]int{
			worker.QueueReels: 1,
		},
	})
	mux := asynq.NewServeMux()
	worker.NewReelWorker(runner, zlog).Register(mux)
	if err := srv.Start(mux); err != nil {
		zlog.Fatal("failed to start asynq worker", zap.Error(err))
	}

	return worker.NewAsynqDispatcher(asynqClient, zlog), func(context.Context) error {
		srv.Shutdown()
		return asynqClient.Close()
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
