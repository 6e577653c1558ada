package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/tourguide/cache"
	"github.com/briangreenhill/tourguide/ranking"
)

type stubLister struct {
	routes []ranking.RouteSummary
	err    error
}

func (s stubLister) ListRoutes(context.Context) ([]ranking.RouteSummary, error) {
	return s.routes, s.err
}

func TestWarmRankings(t *testing.T) {
	store := cache.NewStore(cache.NewMemoryBackend(0))
	w := &WarmRankings{
		Routes: stubLister{routes: []ranking.RouteSummary{
			{ID: "A", Upvotes: 100, Views: 10},
			{ID: "B", Upvotes: 75, Views: 30},
			{ID: "C", Upvotes: 45, Views: 20},
		}},
		Cache:  store,
		Logger: zerolog.Nop(),
	}

	task, err := NewWarmRankingsTask("test")
	require.NoError(t, err)
	require.NoError(t, w.ProcessTask(context.Background(), task))

	assert.Equal(t, 2*len(ranking.DefaultRegistry.List()), store.Stats().ActiveItems)

	byUpvotes, ok := cache.GetAs[[]ranking.RouteSummary](store, RankedKey(ranking.FieldUpvotes, ranking.Desc))
	require.True(t, ok)
	require.Len(t, byUpvotes, 3)
	assert.Equal(t, "A", byUpvotes[0].ID)

	byViews, ok := cache.GetAs[[]ranking.RouteSummary](store, RankedKey(ranking.FieldViews, ranking.Asc))
	require.True(t, ok)
	assert.Equal(t, []string{"A", "C", "B"}, []string{byViews[0].ID, byViews[1].ID, byViews[2].ID})
}

func TestWarmRankingsListError(t *testing.T) {
	w := &WarmRankings{
		Routes: stubLister{err: errors.New("db down")},
		Cache:  cache.NewStore(cache.NewMemoryBackend(0)),
		Logger: zerolog.Nop(),
	}

	task, err := NewWarmRankingsTask("test")
	require.NoError(t, err)
	assert.Error(t, w.ProcessTask(context.Background(), task))
}

func TestWarmRankingsBadPayload(t *testing.T) {
	w := &WarmRankings{Routes: stubLister{}, Cache: cache.NewStore(cache.NewMemoryBackend(0)), Logger: zerolog.Nop()}

	err := w.ProcessTask(context.Background(), asynq.NewTask(TaskWarmRankings, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRankedKey(t *testing.T) {
	assert.Equal(t, "routes:ranked?order=desc&sort=upvotes", RankedKey(ranking.FieldUpvotes, ranking.Desc))
}
