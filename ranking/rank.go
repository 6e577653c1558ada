package ranking

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Field names a sort key.
type Field string

const (
	FieldCreatedDate Field = "created_date"
	FieldUpvotes     Field = "upvotes"
	FieldViews       Field = "views"
	FieldSites       Field = "sites"
	FieldCost        Field = "cost"
)

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection maps "asc" (any case) to Asc; every other value is Desc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Asc)) {
		return Asc
	}
	return Desc
}

// ParseField returns the field named by s, or FieldUpvotes when s is empty.
// Unknown names are returned as-is and rank as a no-op.
func ParseField(s string) Field {
	s = strings.TrimSpace(s)
	if s == "" {
		return FieldUpvotes
	}
	return Field(s)
}

// Rank returns a sorted copy of routes using the default registry.
func Rank(routes []RouteSummary, field Field, dir Direction) []RouteSummary {
	return DefaultRegistry.Rank(routes, field, dir)
}

// RankDefault ranks by upvotes, most upvoted first.
func RankDefault(routes []RouteSummary) []RouteSummary {
	return Rank(routes, FieldUpvotes, Desc)
}

// Rank returns a sorted copy of routes. The input slice is never modified.
// Fields without a registered key leave the order unchanged. Equal keys keep
// their input order in both directions.
func (r *Registry) Rank(routes []RouteSummary, field Field, dir Direction) []RouteSummary {
	out := make([]RouteSummary, len(routes))
	copy(out, routes)
	if len(out) < 2 {
		return out
	}
	if dir != Asc {
		dir = Desc
	}

	log.Debug().Msgf("sorting routes by %s in %s order", field, dir)

	key, ok := r.Get(field)
	if !ok {
		return out
	}

	keys := make([]float64, len(out))
	for i := range out {
		keys[i] = key(&out[i])
	}
	sort.Stable(byKey{routes: out, keys: keys, desc: dir == Desc})
	return out
}

type byKey struct {
	routes []RouteSummary
	keys   []float64
	desc   bool
}

func (b byKey) Len() int { return len(b.routes) }

func (b byKey) Less(i, j int) bool {
	if b.desc {
		return b.keys[i] > b.keys[j]
	}
	return b.keys[i] < b.keys[j]
}

func (b byKey) Swap(i, j int) {
	b.routes[i], b.routes[j] = b.routes[j], b.routes[i]
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"2006/01/02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// ParseCreatedDate parses the creation timestamp in any of the formats route
// records use. Unparsable values return the Unix epoch.
func ParseCreatedDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Unix(0, 0).UTC()
}

// ParseCost keeps only digits and decimal points and parses the longest
// numeric prefix of the remainder. "$3,000" reads as 3000 and "$1.5k-2.5k" as
// 1.52; anything unparsable reads as 0.
func ParseCost(s string) float64 {
	var b strings.Builder
	dot := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !dot:
			dot = true
			b.WriteRune(r)
		case r == '.':
			f, _ := strconv.ParseFloat(b.String(), 64)
			return f
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return f
}
