// Package main runs the background job worker (session archives to S3).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-live/backend/config"
	"github.com/aura-live/backend/internal/sessionlog"
	"github.com/aura-live/backend/internal/sessions"
	"github.com/aura-live/backend/internal/worker"
	"github.com/aura-live/backend/pkg/database"
	"github.com/aura-live/backend/pkg/queue"
	"github.com/aura-live/backend/pkg/redis"
	"github.com/aura-live/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Live.Store != "postgres" {
		logger.Fatal("archive worker needs LIVE_STORE=postgres", zap.String("store", cfg.Live.Store))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		ArchiveBucket:        cfg.AWS.ArchiveBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	archiver := worker.NewSessionArchiver(
		sessions.NewRepository(pool),
		sessionlog.NewRepository(pool),
		s3Client,
		jobQueue,
		logger,
	)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go archiver.Run(workerCtx)
	logger.Info("worker started", zap.String("queue", queue.QueueSessionArchive))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
