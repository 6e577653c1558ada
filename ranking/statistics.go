package ranking

import (
	"strconv"

	"github.com/goccy/go-json"
)

const (
	costPerDay  = 100
	costPerSite = 20
)

// Statistics is the projection shown next to a saved route.
type Statistics struct {
	Sites    int      `json:"sites"`
	Duration Duration `json:"duration"`
	Cost     Cost     `json:"cost"`
}

// Cost is either the route's own cost text or a derived amount.
type Cost struct {
	Text   string
	Amount float64
}

// Value returns the numeric amount, parsing the text form when present.
func (c Cost) Value() float64 {
	if c.Text != "" {
		return ParseCost(c.Text)
	}
	return c.Amount
}

func (c Cost) String() string {
	if c.Text != "" {
		return c.Text
	}
	return strconv.FormatFloat(c.Amount, 'f', -1, 64)
}

// MarshalJSON writes the text when the route supplied one, otherwise the amount.
func (c Cost) MarshalJSON() ([]byte, error) {
	if c.Text != "" {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Amount)
}

// EstimateCost derives a cost from trip length and number of sites.
func EstimateCost(days, sites int) float64 {
	if days < 0 {
		days = 0
	}
	if sites < 0 {
		sites = 0
	}
	return float64(costPerDay*days + costPerSite*sites)
}

// CalculateStatistics projects a route into its statistics. A route's own
// estimated_cost is passed through unchanged; without one the cost is derived
// with EstimateCost. A nil route yields the zero projection.
func CalculateStatistics(route *RouteSummary) Statistics {
	if route == nil {
		return Statistics{}
	}
	st := Statistics{
		Sites:    route.Sites.Count(),
		Duration: route.Duration,
	}
	if route.EstimatedCost != "" {
		st.Cost = Cost{Text: string(route.EstimatedCost)}
	} else {
		st.Cost = Cost{Amount: EstimateCost(route.Duration.Days(), st.Sites)}
	}
	return st
}
