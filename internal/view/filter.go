package view

import (
	"strings"

	"iocviewer/internal/threat"
)

// Filter returns the indicators whose address contains query, ignoring
// case, in their original order. An empty query returns full itself.
// full is never modified.
func Filter(full []threat.Indicator, query string) []threat.Indicator {
	if query == "" {
		return full
	}
	needle := strings.ToLower(query)
	out := make([]threat.Indicator, 0, len(full))
	for _, ioc := range full {
		if strings.Contains(strings.ToLower(ioc.Address), needle) {
			out = append(out, ioc)
		}
	}
	return out
}
