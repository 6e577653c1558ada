package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/briangreenhill/tourguide/cache"
	"github.com/briangreenhill/tourguide/internal/config"
	"github.com/briangreenhill/tourguide/internal/db"
	"github.com/briangreenhill/tourguide/internal/jobs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.RequireWorker(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", "worker").Logger()
	log.Logger = logger

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer pool.Close()
	q := db.New(pool)

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

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency:    4,
		StrictPriority: false,
		Queues: map[string]int{
			"cache":   10, // higher priority
			"default": 5,
		},
		IsFailure: func(err error) bool { return !isRetryableError(err) },
		Logger:    asynqLogger{logger.With().Str("component", "asynq").Logger()},
	})
	mux := asynq.NewServeMux()
	mux.Handle(jobs.TaskWarmRankings, &jobs.WarmRankings{
		Routes: q,
		Cache:  store,
		Logger: logger.With().Str("task", jobs.TaskWarmRankings).Logger(),
	})

	logger.Info().Str("redis", cfg.RedisAddr).Msg("worker running")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}

// isRetryableError reports whether err looks transient, so it should not
// count against the task's failure budget.
func isRetryableError(err error) bool {
	errStr := strings.ToLower(err.Error())

	// Network/connectivity issues
	for _, s := range []string{"timeout", "connection", "network", "dns", "context deadline exceeded"} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}

// asynqLogger routes asynq's internal logging through zerolog
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug().Msg(sprint(args)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info().Msg(sprint(args)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn().Msg(sprint(args)) }
func (a asynqLogger) Error(args ...any) { a.l.Error().Msg(sprint(args)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal().Msg(sprint(args)) }

func sprint(args []any) string {
	return strings.TrimSpace(fmt.Sprint(args...))
}
