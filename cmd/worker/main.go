package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"servetrack/internal/config"
	"servetrack/internal/logging"
	"servetrack/internal/queue"
	"servetrack/internal/session"
	"servetrack/internal/store"
)

// Worker consumes cache-refresh messages and mirrors freshly written
// session records into redis, keeping the read-fallback cache close behind
// the primary store.
func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogFormat)
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	cache := session.NewCache(redisClient.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Fatal("queue consume init failed", zap.Error(err))
	}

	logger.Info("worker started, waiting for messages")
	for msg := range messages {
		var sess session.Session
		if err := json.Unmarshal(msg.Body, &sess); err != nil {
			logger.Warn("bad refresh message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case queue.TypeActiveSession:
			if err := cache.PutActive(ctx, sess); err != nil {
				logger.Warn("mirror active failed", zap.Error(err), zap.String("session_id", sess.ID))
				continue
			}
		case queue.TypeCompletedSession:
			if err := cache.PutCompleted(ctx, sess); err != nil {
				logger.Warn("mirror completed failed", zap.Error(err), zap.String("session_id", sess.ID))
				continue
			}
			// Removing a session that was never mirrored is fine.
			if err := cache.RemoveActive(ctx, sess.ID); err != nil {
				logger.Warn("mirror active removal failed", zap.Error(err), zap.String("session_id", sess.ID))
			}
		default:
			continue
		}
		logger.Debug("mirror refreshed", zap.String("type", msg.Type), zap.String("session_id", sess.ID))
	}

	logger.Info("worker stopped")
}
