package ranking

import (
	"sort"
	"sync"
)

// KeyFunc extracts the numeric sort key of a route.
type KeyFunc func(r *RouteSummary) float64

// Registry maps sort field names to key extractors
type Registry struct {
	mu   sync.RWMutex
	keys map[Field]KeyFunc
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		keys: make(map[Field]KeyFunc),
	}
}

// DefaultRegistry carries the built-in route fields.
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(FieldCreatedDate, func(rt *RouteSummary) float64 {
		return float64(ParseCreatedDate(string(rt.CreatedDate)).UnixMilli())
	})
	r.Register(FieldUpvotes, func(rt *RouteSummary) float64 { return float64(rt.Upvotes) })
	r.Register(FieldViews, func(rt *RouteSummary) float64 { return float64(rt.Views) })
	r.Register(FieldSites, func(rt *RouteSummary) float64 { return float64(rt.Sites.Count()) })
	r.Register(FieldCost, func(rt *RouteSummary) float64 { return ParseCost(string(rt.EstimatedCost)) })
	return r
}

// Register adds or replaces the key extractor for a field
func (r *Registry) Register(field Field, key KeyFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[field] = key
}

// Get retrieves the key extractor for a field
func (r *Registry) Get(field Field) (KeyFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, exists := r.keys[field]
	return key, exists
}

// List returns all registered field names, sorted
func (r *Registry) List() []Field {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fields := make([]Field, 0, len(r.keys))
	for f := range r.keys {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}
