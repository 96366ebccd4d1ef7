package query

import "strings"

// OverviewAreaName is the synthetic column label used for overview queries.
const OverviewAreaName = "United Kingdom"

// Nations accepted for AreaNation queries.
var Nations = []string{
	"England",
	"Northern Ireland",
	"Scotland",
	"Wales",
}

// Regions accepted for AreaRegion queries (English regions).
var Regions = []string{
	"East Midlands",
	"East of England",
	"London",
	"North East",
	"North West",
	"South East",
	"South West",
	"West Midlands",
	"Yorkshire and The Humber",
}

// KnownAreas returns the valid area names for an area type.
func KnownAreas(t AreaType) []string {
	switch t {
	case AreaOverview:
		return []string{OverviewAreaName}
	case AreaNation:
		return Nations
	case AreaRegion:
		return Regions
	default:
		return nil
	}
}

// CanonicalArea resolves name case-insensitively to its canonical spelling.
func CanonicalArea(t AreaType, name string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, area := range KnownAreas(t) {
		if strings.ToLower(area) == want {
			return area, true
		}
	}
	return "", false
}

// Canonical returns a copy of s with every known area name in its canonical
// spelling, as the API expects it. Unknown names are kept as given.
func (s Spec) Canonical() Spec {
	names := make([]string, len(s.AreaNames))
	for i, name := range s.AreaNames {
		if c, ok := CanonicalArea(s.AreaType, name); ok {
			name = c
		}
		names[i] = name
	}
	s.AreaNames = names
	return s
}
