// Package ranking orders saved travel routes and derives per-route statistics.
package ranking

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/goccy/go-json"
)

// RouteSummary is the metadata of one itinerary as stored by the route service.
// Every field except ID may be absent; numeric readers substitute 0.
type RouteSummary struct {
	ID            string   `json:"id"`
	Name          string   `json:"route_name,omitempty"`
	CreatedDate   Text     `json:"created_date,omitempty"`
	Upvotes       Count    `json:"upvotes"`
	Views         Count    `json:"views"`
	Sites         Sites    `json:"sites_included_in_routes"`
	Duration      Duration `json:"route_duration"`
	EstimatedCost Text     `json:"estimated_cost,omitempty"`
	UserID        string   `json:"user_id,omitempty"`
}

// UnmarshalJSON accepts the alternate spellings found in older route records
// (`_id`, `duration`) alongside the canonical ones.
func (r *RouteSummary) UnmarshalJSON(data []byte) error {
	type plain RouteSummary
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var alt struct {
		MongoID     string   `json:"_id"`
		AltDuration Duration `json:"duration"`
	}
	if err := json.Unmarshal(data, &alt); err != nil {
		return err
	}

	*r = RouteSummary(p)
	if r.ID == "" {
		r.ID = alt.MongoID
	}
	if r.Duration.IsZero() {
		r.Duration = alt.AltDuration
	}
	return nil
}

// Text is a free-form string field that older records sometimes store as a
// number (an epoch-millisecond date, a bare cost). Numbers keep their decimal
// text; any other JSON type reads as empty.
type Text string

// UnmarshalJSON never fails; unsupported values read as "".
func (t *Text) UnmarshalJSON(data []byte) error {
	*t = ""
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			*t = Text(s)
		}
	case 'n', 't', 'f', '[', '{':
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			*t = Text(strconv.FormatFloat(f, 'f', -1, 64))
		}
	}
	return nil
}

// Count is a non-negative integer counter that decodes leniently: numbers and
// numeric strings are accepted, anything else reads as 0.
type Count int

// UnmarshalJSON never fails; malformed input decodes as 0.
func (c *Count) UnmarshalJSON(data []byte) error {
	*c = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var f float64
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		f = v
	} else if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	*c = Count(f)
	return nil
}

// Sites holds site membership either as a bare count or as a list of site names.
type Sites struct {
	count int
	names []string
	list  bool
}

// SiteCount returns the count form.
func SiteCount(n int) Sites {
	if n < 0 {
		n = 0
	}
	return Sites{count: n}
}

// SiteList returns the list form.
func SiteList(names ...string) Sites {
	return Sites{names: names, list: true}
}

// Count resolves either form to the number of sites.
func (s Sites) Count() int {
	if s.list {
		return len(s.names)
	}
	return s.count
}

// Names returns the site names of the list form, or nil for the count form.
func (s Sites) Names() []string {
	return s.names
}

// IsList reports whether the value was given as a list of names.
func (s Sites) IsList() bool {
	return s.list
}

// MarshalJSON writes the value back in the form it was read in.
func (s Sites) MarshalJSON() ([]byte, error) {
	if s.list {
		if s.names == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(s.names)
	}
	return json.Marshal(s.count)
}

// UnmarshalJSON never fails; a value that is neither a number nor an array reads as 0.
func (s *Sites) UnmarshalJSON(data []byte) error {
	*s = Sites{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if data[0] == '[' {
		var raw []any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
		names := make([]string, 0, len(raw))
		for _, v := range raw {
			switch t := v.(type) {
			case string:
				names = append(names, t)
			default:
				b, _ := json.Marshal(t)
				names = append(names, string(b))
			}
		}
		*s = SiteList(names...)
		return nil
	}
	var n Count
	_ = n.UnmarshalJSON(data)
	*s = SiteCount(int(n))
	return nil
}

// Duration is a trip length given either as free text ("3 days") or as a bare
// number of days. The original representation is preserved.
type Duration struct {
	text    string
	days    int
	numeric bool
}

// DurationDays returns the numeric form.
func DurationDays(n int) Duration {
	if n < 0 {
		n = 0
	}
	return Duration{days: n, numeric: true}
}

// DurationText returns the text form.
func DurationText(s string) Duration {
	return Duration{text: s}
}

// IsZero reports whether no duration was given.
func (d Duration) IsZero() bool {
	return !d.numeric && d.text == ""
}

// String returns the duration as given.
func (d Duration) String() string {
	if d.numeric {
		return strconv.Itoa(d.days)
	}
	return d.text
}

// Days extracts the number of days: the value itself for the numeric form, the
// leading integer for text. Malformed text yields 0.
func (d Duration) Days() int {
	if d.numeric {
		return d.days
	}
	return leadingInt(d.text)
}

// MarshalJSON writes the value as given; a missing duration is written as 0.
func (d Duration) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("0"), nil
	}
	if d.numeric {
		return json.Marshal(d.days)
	}
	return json.Marshal(d.text)
}

// UnmarshalJSON never fails; unsupported values read as no duration.
func (d *Duration) UnmarshalJSON(data []byte) error {
	*d = Duration{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			*d = DurationText(s)
		}
	case 'n', 't', 'f', '[', '{':
	default:
		var n Count
		_ = n.UnmarshalJSON(data)
		*d = DurationDays(int(n))
	}
	return nil
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && unicode.IsDigit(rune(s[end])) {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
