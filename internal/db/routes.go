package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/briangreenhill/tourguide/ranking"
)

// ErrRouteNotFound is returned when no route has the requested ID
var ErrRouteNotFound = errors.New("route not found")

const routeColumns = `id, user_id, route_name, sites, route_duration, estimated_cost, upvotes, views, created_date`

// CreateRouteParams are the user-supplied fields of a new route
type CreateRouteParams struct {
	UserID        string
	Name          string
	Sites         ranking.Sites
	Duration      ranking.Duration
	EstimatedCost string
}

// CreateRoute inserts a route and returns it with its generated ID
func (q *Queries) CreateRoute(ctx context.Context, p CreateRouteParams) (ranking.RouteSummary, error) {
	sites, err := json.Marshal(p.Sites)
	if err != nil {
		return ranking.RouteSummary{}, fmt.Errorf("encode sites: %w", err)
	}
	duration, err := json.Marshal(p.Duration)
	if err != nil {
		return ranking.RouteSummary{}, fmt.Errorf("encode duration: %w", err)
	}

	row := q.db.QueryRow(ctx,
		`INSERT INTO routes (id, user_id, route_name, sites, route_duration, estimated_cost)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+routeColumns,
		uuid.New(), p.UserID, p.Name, sites, duration, p.EstimatedCost,
	)
	return scanRoute(row)
}

// GetRoute returns a single route
func (q *Queries) GetRoute(ctx context.Context, id uuid.UUID) (ranking.RouteSummary, error) {
	row := q.db.QueryRow(ctx, `SELECT `+routeColumns+` FROM routes WHERE id = $1`, id)
	return scanRoute(row)
}

// ListRoutes returns every route, newest first
func (q *Queries) ListRoutes(ctx context.Context) ([]ranking.RouteSummary, error) {
	rows, err := q.db.Query(ctx, `SELECT `+routeColumns+` FROM routes ORDER BY created_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return collectRoutes(rows)
}

// ListRoutesByUser returns the routes saved by one user, newest first
func (q *Queries) ListRoutesByUser(ctx context.Context, userID string) ([]ranking.RouteSummary, error) {
	rows, err := q.db.Query(ctx, `SELECT `+routeColumns+` FROM routes WHERE user_id = $1 ORDER BY created_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list routes for user: %w", err)
	}
	return collectRoutes(rows)
}

// DeleteRoute removes a route owned by userID
func (q *Queries) DeleteRoute(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM routes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete route: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRouteNotFound
	}
	return nil
}

// IncrementViews bumps the view counter
func (q *Queries) IncrementViews(ctx context.Context, id uuid.UUID) error {
	return q.bump(ctx, `UPDATE routes SET views = views + 1 WHERE id = $1`, id)
}

// Upvote bumps the upvote counter
func (q *Queries) Upvote(ctx context.Context, id uuid.UUID) error {
	return q.bump(ctx, `UPDATE routes SET upvotes = upvotes + 1 WHERE id = $1`, id)
}

func (q *Queries) bump(ctx context.Context, sql string, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("update route %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRouteNotFound
	}
	return nil
}

func collectRoutes(rows pgx.Rows) ([]ranking.RouteSummary, error) {
	defer rows.Close()
	var out []ranking.RouteSummary
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read routes: %w", err)
	}
	return out, nil
}

func scanRoute(row pgx.Row) (ranking.RouteSummary, error) {
	var (
		r               ranking.RouteSummary
		id              uuid.UUID
		sites, duration []byte
		upvotes, views  int32
		cost            string
		created         time.Time
	)
	err := row.Scan(&id, &r.UserID, &r.Name, &sites, &duration, &cost, &upvotes, &views, &created)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrRouteNotFound
	}
	if err != nil {
		return r, fmt.Errorf("scan route: %w", err)
	}

	r.ID = id.String()
	r.Upvotes = ranking.Count(upvotes)
	r.Views = ranking.Count(views)
	r.EstimatedCost = ranking.Text(cost)
	r.CreatedDate = ranking.Text(created.UTC().Format(time.RFC3339))
	// both decoders are lenient and never fail
	_ = json.Unmarshal(sites, &r.Sites)
	_ = json.Unmarshal(duration, &r.Duration)
	return r, nil
}
