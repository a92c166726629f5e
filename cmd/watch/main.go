// Package main joins a live session's engagement channel and prints events as they arrive.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-live/backend/internal/realtime"
	"github.com/aura-live/backend/internal/viewer"
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8080", "API base url")
		sessionID = flag.String("session", "", "session id to join")
		token     = flag.String("token", os.Getenv("LIVE_TOKEN"), "identity token (optional)")
		width     = flag.Int("width", 1280, "viewport width used to pick the layout variant")
		poll      = flag.Duration("poll", viewer.DefaultPollInterval, "presence poll interval")
		heart     = flag.Bool("heart", false, "send one heart after joining")
	)
	flag.Parse()

	logger := newLogger()
	defer logger.Sync()

	if *sessionID == "" {
		fmt.Fprintln(os.Stderr, "usage: watch -session <id> [-url http://host:port] [-token jwt]")
		os.Exit(2)
	}

	layout := viewer.Layout{}
	tray := viewer.NewReactionTray(viewer.DefaultReactionLifetime)
	fmt.Printf("layout: %s\n", layout.Select(*width))

	client, err := viewer.NewClient(viewer.ClientOptions{
		BaseURL:      *baseURL,
		SessionID:    *sessionID,
		Token:        *token,
		PollInterval: *poll,
		OnChat: func(m realtime.ChatMessage) {
			fmt.Printf("[%s] %s: %s\n", m.SentAt.Local().Format(time.Kitchen), m.SenderIdentity, m.Body)
		},
		OnReaction: func(r realtime.ReactionBurst) {
			now := time.Now()
			tray.Sweep(now)
			tray.Add(r.OriginOffset, now)
			fmt.Printf("<3 at %.2f (%d on screen)\n", r.OriginOffset, len(tray.Visible()))
		},
		OnError: func(e realtime.ErrorFrame) {
			fmt.Fprintf(os.Stderr, "rejected: %s\n", e.Message)
		},
	}, logger)
	if err != nil {
		logger.Fatal("client", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *heart {
		go func() {
			time.Sleep(500 * time.Millisecond)
			if err := client.SendReaction(0.5); err != nil {
				logger.Warn("send reaction", zap.Error(err))
			}
		}()
	}

	err = client.Run(ctx)
	switch {
	case errors.Is(err, viewer.ErrSessionEnded):
		fmt.Println("session ended")
	case err != nil && !errors.Is(err, context.Canceled):
		logger.Fatal("watch", zap.Error(err))
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
