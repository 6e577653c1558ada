package routes

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/tourguide/cache"
	"github.com/briangreenhill/tourguide/internal/auth"
	"github.com/briangreenhill/tourguide/internal/db"
	appmw "github.com/briangreenhill/tourguide/internal/http/middleware"
	"github.com/briangreenhill/tourguide/internal/jobs"
	"github.com/briangreenhill/tourguide/ranking"
)

// RouteRepository is the persistence the API needs; *db.Queries satisfies it
type RouteRepository interface {
	ListRoutes(ctx context.Context) ([]ranking.RouteSummary, error)
	ListRoutesByUser(ctx context.Context, userID string) ([]ranking.RouteSummary, error)
	GetRoute(ctx context.Context, id uuid.UUID) (ranking.RouteSummary, error)
	CreateRoute(ctx context.Context, p db.CreateRouteParams) (ranking.RouteSummary, error)
	DeleteRoute(ctx context.Context, id uuid.UUID, userID string) error
	IncrementViews(ctx context.Context, id uuid.UUID) error
	Upvote(ctx context.Context, id uuid.UUID) error
}

// Enqueuer schedules background tasks; *asynq.Client satisfies it
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Server struct {
	Router *chi.Mux
	Routes RouteRepository
	Cache  *cache.Store
	Tokens auth.Tokens
	Jobs   Enqueuer // optional
}

type ServerOptions struct {
	Routes RouteRepository
	Cache  *cache.Store
	Tokens auth.Tokens
	Jobs   Enqueuer
	Logger zerolog.Logger
}

// routeView is a route together with its derived statistics
type routeView struct {
	ranking.RouteSummary
	Statistics ranking.Statistics `json:"statistics"`
}

type rankedResponse struct {
	Sort   ranking.Field     `json:"sort"`
	Order  ranking.Direction `json:"order"`
	Routes []routeView       `json:"routes"`
}

type createRouteRequest struct {
	Name          string           `json:"route_name"`
	Sites         ranking.Sites    `json:"sites_included_in_routes"`
	Duration      ranking.Duration `json:"route_duration"`
	EstimatedCost string           `json:"estimated_cost"`
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)

	cs := opts.Cache
	if cs == nil {
		cs = cache.Default()
	}
	s := &Server{Router: r, Routes: opts.Routes, Cache: cs, Tokens: opts.Tokens, Jobs: opts.Jobs}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/routes", s.handleListRoutes)
		api.Get("/routes/{routeID}", s.handleGetRoute)
		api.Get("/routes/{routeID}/statistics", s.handleRouteStatistics)
		api.Get("/cache/stats", s.handleCacheStats)

		api.Group(func(pr chi.Router) {
			pr.Use(appmw.RequireAuth(s.Tokens))
			pr.Post("/routes", s.handleCreateRoute)
			pr.Post("/routes/{routeID}/upvote", s.handleUpvote)
			pr.Delete("/routes/{routeID}", s.handleDeleteRoute)
			pr.Get("/profile/routes", s.handleProfileRoutes)
			pr.Delete("/cache", s.handleClearCache)
		})
	})

	return s
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}

func sortParams(r *http.Request) (ranking.Field, ranking.Direction) {
	q := r.URL.Query()
	return ranking.ParseField(q.Get("sort")), ranking.ParseDirection(q.Get("order"))
}

func views(routes []ranking.RouteSummary) []routeView {
	out := make([]routeView, len(routes))
	for i := range routes {
		out[i] = routeView{RouteSummary: routes[i], Statistics: ranking.CalculateStatistics(&routes[i])}
	}
	return out
}

// rankedFromCache serves a ranked list from the cache, computing and storing
// it on a miss.
func (s *Server) rankedFromCache(w http.ResponseWriter, r *http.Request, key string, load func() ([]ranking.RouteSummary, error)) {
	field, dir := sortParams(r)
	log := hlog.FromRequest(r)

	// unregistered sort fields rank as a no-op and are never cached
	_, cacheable := ranking.DefaultRegistry.Get(field)

	if !cacheable {
		routes, err := load()
		if err != nil {
			log.Error().Err(err).Msg("load routes")
			http.Error(w, "could not load routes", http.StatusInternalServerError)
			return
		}
		w.Header().Set("X-Cache", "BYPASS")
		s.writeJSON(w, r, http.StatusOK, rankedResponse{Sort: field, Order: dir, Routes: views(ranking.Rank(routes, field, dir))})
		return
	}

	if ranked, ok := cache.GetAs[[]ranking.RouteSummary](s.Cache, key); ok {
		w.Header().Set("X-Cache", "HIT")
		s.writeJSON(w, r, http.StatusOK, rankedResponse{Sort: field, Order: dir, Routes: views(ranked)})
		return
	}

	routes, err := load()
	if err != nil {
		log.Error().Err(err).Msg("load routes")
		http.Error(w, "could not load routes", http.StatusInternalServerError)
		return
	}
	ranked := ranking.Rank(routes, field, dir)
	if !s.Cache.SetItem(key, ranked) {
		log.Warn().Str("key", key).Msg("ranked list not cached")
	}

	w.Header().Set("X-Cache", "MISS")
	s.writeJSON(w, r, http.StatusOK, rankedResponse{Sort: field, Order: dir, Routes: views(ranked)})
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	field, dir := sortParams(r)
	s.rankedFromCache(w, r, jobs.RankedKey(field, dir), func() ([]ranking.RouteSummary, error) {
		return s.Routes.ListRoutes(r.Context())
	})
}

func (s *Server) handleProfileRoutes(w http.ResponseWriter, r *http.Request) {
	userID := appmw.UserID(r.Context())
	field, dir := sortParams(r)
	key := cache.KeyFor("routes:user", map[string]string{
		"user":  userID,
		"sort":  string(field),
		"order": string(dir),
	})
	s.rankedFromCache(w, r, key, func() ([]ranking.RouteSummary, error) {
		return s.Routes.ListRoutesByUser(r.Context(), userID)
	})
}

func routeID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "routeID"))
	if err != nil {
		http.Error(w, "invalid route ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) routeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, db.ErrRouteNotFound) {
		http.Error(w, "route not found", http.StatusNotFound)
		return
	}
	hlog.FromRequest(r).Error().Err(err).Msg("route query failed")
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := routeID(w, r)
	if !ok {
		return
	}

	if err := s.Routes.IncrementViews(r.Context(), id); err != nil {
		s.routeError(w, r, err)
		return
	}
	route, err := s.Routes.GetRoute(r.Context(), id)
	if err != nil {
		s.routeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, routeView{RouteSummary: route, Statistics: ranking.CalculateStatistics(&route)})
}

func (s *Server) handleRouteStatistics(w http.ResponseWriter, r *http.Request) {
	id, ok := routeID(w, r)
	if !ok {
		return
	}

	route, err := s.Routes.GetRoute(r.Context(), id)
	if err != nil {
		s.routeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, ranking.CalculateStatistics(&route))
}

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	var req createRouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "route_name required", http.StatusBadRequest)
		return
	}

	route, err := s.Routes.CreateRoute(r.Context(), db.CreateRouteParams{
		UserID:        appmw.UserID(r.Context()),
		Name:          req.Name,
		Sites:         req.Sites,
		Duration:      req.Duration,
		EstimatedCost: strings.TrimSpace(req.EstimatedCost),
	})
	if err != nil {
		s.routeError(w, r, err)
		return
	}

	s.invalidate(r, "route created")
	s.writeJSON(w, r, http.StatusCreated, routeView{RouteSummary: route, Statistics: ranking.CalculateStatistics(&route)})
}

func (s *Server) handleUpvote(w http.ResponseWriter, r *http.Request) {
	id, ok := routeID(w, r)
	if !ok {
		return
	}
	if err := s.Routes.Upvote(r.Context(), id); err != nil {
		s.routeError(w, r, err)
		return
	}
	s.invalidate(r, "route upvoted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := routeID(w, r)
	if !ok {
		return
	}
	if err := s.Routes.DeleteRoute(r.Context(), id, appmw.UserID(r.Context())); err != nil {
		s.routeError(w, r, err)
		return
	}
	s.invalidate(r, "route deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.Cache.Stats())
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if !s.Cache.ClearCache() {
		http.Error(w, "could not clear cache", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// invalidate drops cached ranked lists after a write and asks the worker to
// rebuild them.
func (s *Server) invalidate(r *http.Request, reason string) {
	log := hlog.FromRequest(r)
	if !s.Cache.ClearCache() {
		log.Warn().Msg("cache invalidation failed")
	}
	if s.Jobs == nil {
		return
	}

	task, err := jobs.NewWarmRankingsTask(reason)
	if err != nil {
		log.Error().Err(err).Msg("build warm-rankings task")
		return
	}
	info, err := s.Jobs.Enqueue(task,
		asynq.Queue("cache"),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
	)
	if err != nil {
		log.Warn().Err(err).Msg("enqueue warm-rankings failed")
		return
	}
	log.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Msg("enqueued warm-rankings")
}
