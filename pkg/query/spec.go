// Package query describes the questions that can be asked of the UK coronavirus
// dashboard API and builds the filters and structure parameters for a request.
package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSpec is returned (wrapped) by Spec.Validate.
var ErrInvalidSpec = errors.New("invalid query spec")

// AreaType is the administrative granularity of a query.
type AreaType string

const (
	// AreaOverview covers the whole of the United Kingdom.
	AreaOverview AreaType = "overview"

	// AreaNation covers one or more of the four nations.
	AreaNation AreaType = "nation"

	// AreaRegion covers one or more English regions.
	AreaRegion AreaType = "region"
)

// DataType is the metric being charted.
type DataType string

const (
	DataCases      DataType = "cases"
	DataDeaths     DataType = "deaths"
	DataTests      DataType = "tests"
	DataAdmissions DataType = "admissions"
)

// CountType selects daily counts or running totals.
type CountType string

const (
	CountNew          CountType = "new"
	CountAccumulative CountType = "accumulative"
)

// Enumerations in menu order.
var (
	AreaTypes  = []AreaType{AreaOverview, AreaNation, AreaRegion}
	DataTypes  = []DataType{DataCases, DataDeaths, DataTests, DataAdmissions}
	CountTypes = []CountType{CountNew, CountAccumulative}

	// Timeframes are the supported windows in days. 0 means all time.
	Timeframes = []int{0, 180, 90, 30, 7}
)

// Spec is a fully resolved request for one graph.
type Spec struct {
	// AreaNames are the column labels, in column order.
	AreaNames []string
	AreaType  AreaType
	DataType  DataType
	CountType CountType

	// Timeframe is the number of most recent days to keep (0 = unbounded).
	Timeframe int
}

// Overview returns a spec for the whole territory.
func Overview(dataType DataType, countType CountType, timeframe int) Spec {
	return Spec{
		AreaNames: []string{OverviewAreaName},
		AreaType:  AreaOverview,
		DataType:  dataType,
		CountType: countType,
		Timeframe: timeframe,
	}
}

// Validate checks enum membership, area names and the timeframe.
func (s Spec) Validate() error {
	if !s.AreaType.Valid() {
		return fmt.Errorf("%w: unknown area type %q", ErrInvalidSpec, s.AreaType)
	}
	if !s.DataType.Valid() {
		return fmt.Errorf("%w: unknown data type %q", ErrInvalidSpec, s.DataType)
	}
	if !s.CountType.Valid() {
		return fmt.Errorf("%w: unknown count type %q", ErrInvalidSpec, s.CountType)
	}
	if !validTimeframe(s.Timeframe) {
		return fmt.Errorf("%w: timeframe %d is not one of %v", ErrInvalidSpec, s.Timeframe, Timeframes)
	}
	if len(s.AreaNames) == 0 {
		return fmt.Errorf("%w: at least one area name is required", ErrInvalidSpec)
	}

	if s.AreaType == AreaOverview {
		if len(s.AreaNames) != 1 || s.AreaNames[0] != OverviewAreaName {
			return fmt.Errorf("%w: overview takes exactly the area %q", ErrInvalidSpec, OverviewAreaName)
		}
		return nil
	}

	seen := make(map[string]bool, len(s.AreaNames))
	for _, name := range s.AreaNames {
		if _, ok := CanonicalArea(s.AreaType, name); !ok {
			return fmt.Errorf("%w: %q is not a known %s", ErrInvalidSpec, name, s.AreaType)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("%w: area %q requested twice", ErrInvalidSpec, name)
		}
		seen[key] = true
	}

	return nil
}

// Valid reports whether t is a known area type.
func (t AreaType) Valid() bool {
	for _, v := range AreaTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Valid reports whether d is a known data type.
func (d DataType) Valid() bool {
	for _, v := range DataTypes {
		if v == d {
			return true
		}
	}
	return false
}

// Valid reports whether c is a known count type.
func (c CountType) Valid() bool {
	for _, v := range CountTypes {
		if v == c {
			return true
		}
	}
	return false
}

// Title returns the display label, e.g. "Cases".
func (d DataType) Title() string { return capitalise(string(d)) }

// Title returns the display label, e.g. "Accumulative".
func (c CountType) Title() string { return capitalise(string(c)) }

// ParseAreaType parses a case-insensitive area type name.
func ParseAreaType(s string) (AreaType, error) {
	t := AreaType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown area type %q", ErrInvalidSpec, s)
	}
	return t, nil
}

// ParseDataType parses a case-insensitive data type name.
func ParseDataType(s string) (DataType, error) {
	d := DataType(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: unknown data type %q", ErrInvalidSpec, s)
	}
	return d, nil
}

// ParseCountType parses a case-insensitive count type name.
func ParseCountType(s string) (CountType, error) {
	c := CountType(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown count type %q", ErrInvalidSpec, s)
	}
	return c, nil
}

func validTimeframe(days int) bool {
	for _, d := range Timeframes {
		if d == days {
			return true
		}
	}
	return false
}

func capitalise(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
