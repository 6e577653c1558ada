// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/briangreenhill/tourguide/cache"
	"github.com/briangreenhill/tourguide/internal/auth"
	"github.com/briangreenhill/tourguide/internal/config"
	"github.com/briangreenhill/tourguide/internal/db"
	"github.com/briangreenhill/tourguide/internal/http/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.RequireAPI(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", "api").Logger()
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cache
	backend, closeCache, err := cache.OpenBackend(cfg.Cache.Backend, cfg.Cache.Dir)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("open cache")
	}
	defer func() {
		if err := closeCache(); err != nil {
			logger.Error().Err(err).Msg("close cache")
		}
	}()
	store := cache.NewStore(backend, cache.WithLogger(logger.With().Str("component", "cache").Logger()))
	store.Initialize(cache.Config{DefaultTTL: cfg.Cache.DefaultTTL, MaxSize: cfg.Cache.MaxSize})
	cache.SetDefault(store)

	// DB
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db error")
	}
	defer pool.Close()
	queries := db.New(pool)
	if err := queries.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	// Background jobs
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Msg("close asynq client")
		}
	}()

	// Router / server
	s := routes.New(routes.ServerOptions{
		Routes: queries,
		Cache:  store,
		Tokens: auth.Tokens{Secret: []byte(cfg.JWTSecret), TTL: cfg.TokenTTL},
		Jobs:   client,
		Logger: logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	logger.Info().Str("port", cfg.Port).Str("cache_backend", cfg.Cache.Backend).Msg("starting api")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("listen")
	}
}
