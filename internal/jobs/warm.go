package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/tourguide/cache"
	"github.com/briangreenhill/tourguide/ranking"
)

// RouteLister loads every saved route
type RouteLister interface {
	ListRoutes(ctx context.Context) ([]ranking.RouteSummary, error)
}

// WarmRankings precomputes every ranked list and stores it in the cache
type WarmRankings struct {
	Routes RouteLister
	Cache  *cache.Store
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler
func (w *WarmRankings) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p WarmRankingsPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// a bad payload will never succeed
		w.Logger.Error().Err(err).Msg("bad warm-rankings payload")
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	start := time.Now()
	n, err := w.Warm(ctx)
	if err != nil {
		w.Logger.Warn().Err(err).Str("reason", p.Reason).Dur("duration", time.Since(start)).Msg("warm rankings failed")
		return err
	}
	w.Logger.Info().Str("reason", p.Reason).Int("lists", n).Dur("duration", time.Since(start)).Msg("warmed rankings")
	return nil
}

// Warm ranks all routes by every registered field in both directions and
// returns how many lists were written.
func (w *WarmRankings) Warm(ctx context.Context) (int, error) {
	routes, err := w.Routes.ListRoutes(ctx)
	if err != nil {
		return 0, fmt.Errorf("list routes: %w", err)
	}

	written := 0
	for _, field := range ranking.DefaultRegistry.List() {
		for _, dir := range []ranking.Direction{ranking.Asc, ranking.Desc} {
			if err := ctx.Err(); err != nil {
				return written, err
			}
			if w.Cache.SetItem(RankedKey(field, dir), ranking.Rank(routes, field, dir)) {
				written++
			}
		}
	}
	return written, nil
}
