package models

import "fmt"

// ItemFilter selects which feed populates the visible list.
type ItemFilter string

const (
	FilterAll         ItemFilter = "all"
	FilterInstalled   ItemFilter = "installed"
	FilterUpdates     ItemFilter = "updates"
	FilterConsolidate ItemFilter = "consolidate"
)

// Filters lists every filter in tab order.
var Filters = []ItemFilter{FilterAll, FilterInstalled, FilterUpdates, FilterConsolidate}

// ParseFilter converts a user supplied string into an ItemFilter.
// An empty string yields FilterAll.
func ParseFilter(s string) (ItemFilter, error) {
	if s == "" {
		return FilterAll, nil
	}
	for _, f := range Filters {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// Next returns the filter after f in tab order, wrapping around.
func (f ItemFilter) Next() ItemFilter {
	for i, candidate := range Filters {
		if candidate == f {
			return Filters[(i+1)%len(Filters)]
		}
	}
	return FilterAll
}
