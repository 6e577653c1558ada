package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/tourguide/cache"
	"github.com/briangreenhill/tourguide/internal/auth"
	"github.com/briangreenhill/tourguide/internal/db"
	"github.com/briangreenhill/tourguide/internal/http/routes"
	"github.com/briangreenhill/tourguide/internal/jobs"
)

// inlineJobs runs warm-rankings tasks synchronously instead of queueing them
type inlineJobs struct {
	handler asynq.Handler
}

func (j inlineJobs) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if err := j.handler.ProcessTask(context.Background(), task); err != nil {
		return nil, err
	}
	return &asynq.TaskInfo{ID: uuid.NewString(), Queue: "cache"}, nil
}

// TestSmokeAPI drives the API end to end against a real database:
// create routes, vote, and read the ranked list back from a warmed cache.
func TestSmokeAPI(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping smoke test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	defer pool.Close()

	q := db.New(pool)
	require.NoError(t, q.Migrate(ctx))

	store := cache.NewStore(cache.NewMemoryBackend(0))
	store.Initialize(cache.Config{DefaultTTL: time.Minute})

	tokens := auth.Tokens{Secret: []byte("smoke-test-secret-value"), TTL: time.Minute}
	srv := routes.New(routes.ServerOptions{
		Routes: q,
		Cache:  store,
		Tokens: tokens,
		Jobs:   inlineJobs{handler: &jobs.WarmRankings{Routes: q, Cache: store, Logger: zerolog.Nop()}},
		Logger: zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.Router)
	defer ts.Close()

	user := "smoke-" + uuid.NewString()
	tok, err := tokens.Issue(user)
	require.NoError(t, err)

	do := func(method, path, body string) *http.Response {
		req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	var ids []string
	for _, name := range []string{"Smoke Low", "Smoke High"} {
		resp := do(http.MethodPost, "/api/routes", `{"route_name":"`+name+`","sites_included_in_routes":3,"route_duration":2}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var created struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
		ids = append(ids, created.ID)
	}
	t.Cleanup(func() {
		for _, id := range ids {
			_ = q.DeleteRoute(ctx, uuid.MustParse(id), user)
		}
	})

	require.Equal(t, http.StatusNoContent, do(http.MethodPost, "/api/routes/"+ids[1]+"/upvote", "").StatusCode)

	resp := do(http.MethodGet, "/api/profile/routes?sort=upvotes", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ranked struct {
		Routes []struct {
			ID string `json:"id"`
		} `json:"routes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ranked))
	require.Len(t, ranked.Routes, 2)
	require.Equal(t, ids[1], ranked.Routes[0].ID)

	// the upvote enqueued a warm, so the global list is already cached
	resp = do(http.MethodGet, "/api/routes?sort=upvotes&order=desc", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "HIT", resp.Header.Get("X-Cache"))

	resp = do(http.MethodGet, "/api/routes/"+ids[0]+"/statistics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats struct {
		Sites int     `json:"sites"`
		Cost  float64 `json:"cost"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Equal(t, 3, stats.Sites)
	require.Equal(t, 260.0, stats.Cost)
}
