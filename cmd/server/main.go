package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
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

	"github.com/clipdeck/api/internal/auth"
	"github.com/clipdeck/api/internal/channel"
	"github.com/clipdeck/api/internal/client"
	"github.com/clipdeck/api/internal/config"
	"github.com/clipdeck/api/internal/handler"
	"github.com/clipdeck/api/internal/jobs"
	"github.com/clipdeck/api/internal/logging"
	"github.com/clipdeck/api/internal/metrics"
	"github.com/clipdeck/api/internal/middleware"
	"github.com/clipdeck/api/internal/service"
	"github.com/clipdeck/api/internal/tracker"
	ws "github.com/clipdeck/api/internal/websocket"
	"github.com/clipdeck/api/internal/worker"
	"github.com/clipdeck/api/pkg/response"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logging.NewLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)
	slog.SetDefault(log)
	m := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis not available", "addr", cfg.Redis.Addr, "error", err)
	}

	// Job registry, mirrored to Redis for restarts
	registry := jobs.NewRegistry()
	mirror := jobs.NewRedisMirror(redisClient, logging.WithComponent(log, "job_mirror"))
	mirror.Attach(registry)
	go mirror.Run(ctx)

	// Render backend and observers
	renderClient := client.NewRenderClient(&cfg.Render, &cfg.Retry,
		client.WithRenderLogger(log),
		client.WithRenderMetrics(m),
	)
	if !renderClient.IsConfigured() {
		log.Warn("render backend not configured")
	} else {
		log.Info("render backend", "base_url", cfg.Render.BaseURL, "api_key", logging.SanitizeToken(cfg.Render.APIKey))
	}

	pollTracker := tracker.New(renderClient,
		tracker.WithDefaults(tracker.Options{PollInterval: cfg.Poll.Interval, MaxAttempts: cfg.Poll.MaxAttempts}),
		tracker.WithLogger(log),
		tracker.WithMetrics(m),
	)
	pollObserver := tracker.NewPollObserver(pollTracker, registry, tracker.Options{})

	var source channel.Source
	switch cfg.Push.Transport {
	case "redis":
		source = channel.NewRedisSource(redisClient, cfg.Push.ChannelPrefix)
	default:
		source = channel.NewWebSocketSource(cfg.Render.WSBaseURL, cfg.Render.APIKey)
	}
	pushChannel := channel.New(registry, source,
		channel.WithHeartbeat(cfg.Push.Heartbeat),
		channel.WithLogger(log),
		channel.WithMetrics(m),
	)
	pushObserver := channel.NewPushObserver(pushChannel)

	observerMode := cfg.Generation.Observer
	if observerMode != jobs.ModePoll && observerMode != jobs.ModePush {
		log.Warn("unknown observer mode, falling back to poll", "mode", observerMode)
		observerMode = jobs.ModePoll
	}

	// Services
	timelineService := service.NewTimelineService(renderClient, log)
	genOpts := []service.GenerationOption{
		service.WithObserver(pollObserver),
		service.WithObserver(pushObserver),
		service.WithDefaultObserver(observerMode),
		service.WithMaxConcurrent(cfg.Generation.MaxConcurrent),
		service.WithGenerationLogger(log),
		service.WithGenerationMetrics(m),
	}

	var asynqClient *asynq.Client
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	if cfg.Queue.Mode == "asynq" {
		asynqClient = asynq.NewClient(redisOpt)
		defer asynqClient.Close()
		genOpts = append(genOpts, service.WithDispatcher(service.NewQueueDispatcher(asynqClient, log)))
	}
	generationService := service.NewGenerationService(renderClient, registry, timelineService, genOpts...)

	groqClient := client.NewGroqClient(&cfg.Groq, log)
	sceneService := service.NewSceneService(groqClient, renderClient, log)

	// R2 storage is optional; without it uploads return mock URLs
	var storage client.StorageClient
	var r2Client *client.R2Client
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err = client.NewR2Client(ctx, &cfg.R2)
		if err != nil {
			log.Warn("R2 client not initialized", "error", err)
		} else {
			storage = r2Client
		}
	} else {
		log.Info("R2 storage not configured, using mock storage")
	}
	uploadService := service.NewUploadService(storage)

	hub := ws.NewHub(registry, log)
	go hub.Run(ctx)

	// Auth
	var tokenVerifier auth.TokenVerifier
	if cfg.OIDC.Issuer != "" || cfg.OIDC.Domain != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(&cfg.OIDC)
		if err != nil {
			log.Warn("JWKS verifier not initialized", "error", err)
		} else {
			defer jwksVerifier.Close()
			tokenVerifier = jwksVerifier
		}
	}
	authHandler := handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret)

	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		log.Info("gateway mode enabled, using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		var authMiddleware *middleware.AuthMiddleware
		switch {
		case tokenVerifier != nil && cfg.JWT.Secret != "":
			authMiddleware = middleware.NewAuthMiddlewareWithFallback(tokenVerifier, cfg.JWT.Secret)
		case tokenVerifier != nil:
			authMiddleware = middleware.NewAuthMiddleware(tokenVerifier)
		default:
			authMiddleware = middleware.NewLegacyAuthMiddleware(cfg.JWT.Secret)
		}
		apiAuthMiddleware = authMiddleware.Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient, log)

	validate := validator.New()
	handlers := &handler.Handlers{
		Scenes:   handler.NewSceneHandler(sceneService, validate),
		Generate: handler.NewGenerateHandler(generationService, sceneService, renderClient, validate),
		Jobs:     handler.NewJobHandler(registry, generationService, mirror, validate),
		Timeline: handler.NewTimelineHandler(timelineService, validate),
		Upload:   handler.NewUploadHandler(uploadService, validate),
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"render": renderClient.IsConfigured(),
				"groq":   groqClient.IsConfigured(),
				"r2":     storage != nil,
				"auth":   tokenVerifier != nil || cfg.JWT.Secret != "",
				"queue":  cfg.Queue.Mode,
			},
			"jobs": fiber.Map{
				"tracked":  len(registry.List()),
				"observed": generationService.Active(),
			},
		})
	})

	app.Get("/metrics", metrics.Handler())

	// Forward-auth verification endpoint (internal, called by the gateway)
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", apiAuthMiddleware)
	handlers.Mount(api, handler.Limits{
		Generate: rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour),
		Scenes:   rateLimiter.ScenesLimit(cfg.RateLimit.ScenesPerMin),
		Upload:   rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour),
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))

	var workerServer *asynq.Server
	if cfg.Queue.Mode == "asynq" {
		workerServer, err = startWorkerServer(cfg, redisOpt, generationService, log)
		if err != nil {
			log.Error("asynq worker not started", "error", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Info("server starting", "addr", addr, "env", cfg.Server.Env, "observer", observerMode, "queue", cfg.Queue.Mode)
	if err := app.Listen(addr); err != nil {
		log.Error("server error", "error", err)
	}

	if workerServer != nil {
		workerServer.Shutdown()
	}
	generationService.Shutdown()
	cancel()
	<-mirror.Done()
	log.Info("server stopped")
}

func startWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt, generation *service.GenerationService, log *slog.Logger) (*asynq.Server, error) {
	asynqLogLevel := asynq.InfoLevel
	switch strings.ToLower(cfg.Server.LogLevel) {
	case "debug":
		asynqLogLevel = asynq.DebugLevel
	case "warn":
		asynqLogLevel = asynq.WarnLevel
	case "error":
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Queue.Concurrency,
		Queues: map[string]int{
			service.QueueGeneration: 1,
		},
		LogLevel: asynqLogLevel,
	})

	generationWorker := worker.NewGenerationWorker(generation, log)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeGenerateClip, generationWorker.ProcessTask)

	if err := srv.Start(mux); err != nil {
		return nil, err
	}
	return srv, nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
