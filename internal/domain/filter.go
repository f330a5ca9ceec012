package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFilter is returned for filters that can never be applied.
var ErrInvalidFilter = errors.New("invalid filter")

// YearRange bounds lakes by observation year, inclusive on both ends.
type YearRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// FilterState is the user's current view filter.
type FilterState struct {
	RiskLevels  []string   `json:"risk_levels"`
	SearchQuery string     `json:"search_query"`
	YearRange   *YearRange `json:"year_range,omitempty"`
}

// DefaultFilter shows every known risk level with no search and no year bound.
func DefaultFilter() FilterState {
	return FilterState{RiskLevels: []string{"high", "medium", "low"}}
}

// Validate rejects inverted year ranges.
func (f FilterState) Validate() error {
	if f.YearRange != nil && f.YearRange.From > f.YearRange.To {
		return fmt.Errorf("%w: year range from %d exceeds to %d", ErrInvalidFilter, f.YearRange.From, f.YearRange.To)
	}
	return nil
}

// Matches reports whether lake passes the filter.
func (f FilterState) Matches(lake Lake) bool {
	if !f.matchesRisk(lake.RiskLevel) {
		return false
	}
	if f.SearchQuery != "" &&
		!strings.Contains(strings.ToLower(lake.Name), strings.ToLower(f.SearchQuery)) {
		return false
	}
	if f.YearRange != nil && !lake.ObservedAt.IsZero() {
		y := lake.ObservedAt.Year()
		if y < f.YearRange.From || y > f.YearRange.To {
			return false
		}
	}
	return true
}

func (f FilterState) matchesRisk(level RiskLevel) bool {
	risk := strings.ToLower(string(level))
	for _, r := range f.RiskLevels {
		if strings.ToLower(r) == risk {
			return true
		}
	}
	return false
}

// Apply returns the lakes that pass the filter, preserving input order.
func Apply(lakes []Lake, f FilterState) []Lake {
	out := make([]Lake, 0, len(lakes))
	for _, l := range lakes {
		if f.Matches(l) {
			out = append(out, l)
		}
	}
	return out
}
