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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	v1 "bookmarket-chat/cmd/api/router/v1"
	"bookmarket-chat/internal/config"
	"bookmarket-chat/internal/infrastructure/auth"
	cacheAdapter "bookmarket-chat/internal/infrastructure/cache/adapter"
	"bookmarket-chat/internal/infrastructure/database"
	queueAdapter "bookmarket-chat/internal/infrastructure/queue/adapter"
	"bookmarket-chat/internal/infrastructure/realtime"
	httpHandler "bookmarket-chat/internal/pkg/chat/presentation/http"
	marketAdapter "bookmarket-chat/internal/pkg/market/adapter"
)

func main() {
	cfg := config.Load()

	log := newLogger(cfg)
	log.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("starting chat api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := database.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}
	defer pool.Close()

	if err := database.RunMigrations(connectCtx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(connectCtx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}

	queueClient, err := queueAdapter.NewAsynqClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("queue client failed")
	}
	defer func() { _ = queueClient.Close() }()

	registry := realtime.NewRegistry(log)
	defer registry.Close()

	bridge := realtime.NewBridge(rdb, registry, log)
	go func() {
		if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("bus bridge stopped")
		}
	}()

	cache := cacheAdapter.NewRedisCache(rdb)
	listings := marketAdapter.NewCachedListingCatalog(marketAdapter.NewPgListingCatalog(pool), cache)
	users := marketAdapter.NewPgUserDirectory(pool)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1.RegisterRoutes(r, httpHandler.Deps{
		Pool:     pool,
		Queue:    queueClient,
		Registry: registry,
		Bridge:   bridge,
		Verifier: auth.NewTokenVerifier(cfg.JWTSecret),
		Listings: listings,
		Users:    users,
		Logger:   log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("chat api stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.IsDevelopment() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
