// Package main runs the live session HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-live/backend/config"
	"github.com/aura-live/backend/internal/auth"
	"github.com/aura-live/backend/internal/credentials"
	"github.com/aura-live/backend/internal/middleware"
	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/internal/observability"
	"github.com/aura-live/backend/internal/presence"
	"github.com/aura-live/backend/internal/realtime"
	"github.com/aura-live/backend/internal/sessionlog"
	"github.com/aura-live/backend/internal/sessions"
	"github.com/aura-live/backend/internal/viewer"
	"github.com/aura-live/backend/internal/worker"
	"github.com/aura-live/backend/pkg/database"
	"github.com/aura-live/backend/pkg/queue"
	"github.com/aura-live/backend/pkg/redis"
	"github.com/aura-live/backend/pkg/response"
	"github.com/aura-live/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	metrics := observability.NewMetrics(cfg.Live.MetricsNamespace)

	// Stores: Postgres by default, process memory for single instance demos.
	var (
		sessionStore sessions.Store
		participants sessionlog.Store
	)
	switch cfg.Live.Store {
	case "memory":
		sessionStore = sessions.NewMemoryStore(nil)
		participants = sessionlog.NewMemoryStore()
		logger.Warn("using in-memory session store; state is lost on restart")
	default:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		sessionStore = sessions.NewRepository(pool)
		participants = sessionlog.NewRepository(pool)
	}

	registry := sessions.NewRegistry(sessionStore, logger)
	registry.SetMetrics(metrics)

	// Redis is optional: without it the hub delivers locally and no archive jobs are queued.
	var (
		redisPub realtime.RedisPublisher
		redisSub realtime.RedisSubscriber
	)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		redisPub, redisSub = pubsub, pubsub
		registry.SetArchiveQueue(queue.NewQueue(rdb.Client, logger))
	} else {
		logger.Warn("REDIS_ADDR not set; engagement fanout is local to this instance")
	}

	signer, err := newSigner(cfg)
	if err != nil {
		logger.Fatal("credential signer", zap.Error(err))
	}
	issuer, err := credentials.NewIssuer(signer, cfg.Live.CredentialTTL)
	if err != nil {
		logger.Fatal("credential issuer", zap.Error(err))
	}
	issuer.SetMetrics(metrics)
	iceServers := credentials.ParseICEServers(cfg.WebRTC.ICEUrls)

	hub := realtime.NewHub(registry, realtime.Options{
		SubscriberBuffer: cfg.Live.SubscriberBuffer,
		MaxChatLength:    cfg.Live.MaxChatLength,
		LivenessTimeout:  cfg.Live.ChannelLivenessTimeout,
	}, logger, redisPub, redisSub)
	hub.SetMetrics(metrics)
	hub.SetAudienceChangeHandler(func(roomID string, count int) {
		registry.RecordAudience(context.Background(), roomID, count)
	})
	sessionlog.NewRecorder(participants, logger).Attach(hub)

	var archives worker.Presigner
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ArchiveBucket:        cfg.AWS.ArchiveBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			archives = s3Client
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	identify := func(token string) (string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", err
		}
		return claims.UserID, nil
	}

	sessionHandler := sessions.NewHandler(registry, logger)
	webhookHandler := sessions.NewWebhookHandler(registry, cfg.Live.WebhookSecret, logger)
	presenceService := presence.NewService(sessionStore)
	credentialHandler := credentials.NewHandler(issuer, registry, iceServers, logger)
	eventHandler := realtime.NewHandler(hub)
	participantHandler := sessionlog.NewHandler(participants, registry)
	archiveHandler := worker.NewArchiveHandler(registry, archives)
	clientConfig := viewer.NewClientConfig(cfg.Live.ViewportBreakpoint, cfg.Live.ReactionLifetime, iceServers)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger, "/health", "/metrics", "/live/active"))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Presence and client config (public, poll-friendly)
	router.GET("/live/active", presenceService.Active)
	router.GET("/live/sessions", presenceService.Sessions)
	router.GET("/live/client-config", viewer.ConfigHandler(clientConfig))

	// Anonymous viewers may join; a bad token is still rejected.
	optional := router.Group("")
	optional.Use(middleware.OptionalJWT(jwtService))
	{
		optional.POST("/sessions/:id/credentials", credentialHandler.Issue)
		optional.POST("/sessions/:id/events", eventHandler.Publish)
		optional.GET("/sessions/:id/audience", eventHandler.Audience)
	}

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/sessions/start", middleware.RequireRole(models.RoleCreator, models.RoleAdmin), sessionHandler.Start)
		api.POST("/sessions/stop", sessionHandler.Stop)
		api.POST("/sessions/stop-all", middleware.RequireRole(models.RoleAdmin), sessionHandler.StopAll)
		api.GET("/sessions/:id", sessionHandler.Get)
		api.POST("/sessions/:id/end", sessionHandler.End)
		api.GET("/sessions/:id/participants", participantHandler.GetParticipants)
		api.GET("/sessions/:id/archive-url", middleware.RequireRole(models.RoleAdmin), archiveHandler.DownloadURL)
		api.GET("/creators/:id/sessions", sessionHandler.History)
	}

	// Media backend callback (HMAC signed, no JWT)
	router.POST("/webhooks/room-ended", webhookHandler.RoomEnded)

	// WebSocket (optional token in query)
	router.GET("/ws", realtime.ServeWs(hub, identify, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	defer reaperCancel()
	go hub.RunReaper(reaperCtx, cfg.Live.ReaperInterval)

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("store", cfg.Live.Store),
			zap.String("credential_provider", issuer.Provider()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	reaperCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newSigner(cfg *config.Config) (credentials.Signer, error) {
	switch cfg.Live.CredentialProvider {
	case credentials.ProviderZego:
		return credentials.NewZegoSigner(cfg.Zego.AppID, cfg.Zego.ServerSecret)
	default:
		return credentials.NewJWTSigner(cfg.Live.CredentialAPIKey, cfg.Live.CredentialSecret)
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
