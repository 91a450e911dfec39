package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bookmarket-chat/internal/config"
	"bookmarket-chat/internal/infrastructure/database"
	queueAdapter "bookmarket-chat/internal/infrastructure/queue/adapter"
	"bookmarket-chat/internal/infrastructure/realtime"
	"bookmarket-chat/internal/pkg/chat/application/task"
)

func main() {
	cfg := config.Load()

	log := newLogger(cfg)
	log.Info().Str("env", cfg.Env).Int("concurrency", cfg.WorkerConcurrency).Msg("starting chat worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := database.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	srv, err := queueAdapter.NewAsynqServer(cfg.RedisURL, cfg.WorkerConcurrency, cfg.WorkerQueues, log)
	if err != nil {
		log.Fatal().Err(err).Msg("queue server failed")
	}

	pub := realtime.NewPublisher(rdb)
	task.RegisterPostMessageTask(srv, pool, pub)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("worker stopped")
	}
	log.Info().Msg("chat worker stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.IsDevelopment() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
