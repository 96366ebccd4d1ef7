// Package table pivots flat per-(date, area) API entries into one row per
// date with one value column per requested area.
package table

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used by the API. Rows are
// ordered by comparing dates as strings, which only works for this layout.
const DateLayout = "2006-01-02"

// Row is one date and its per-area values.
type Row struct {
	Date string

	// Values are aligned with the requested area names. A nil value means
	// no entry existed for that (date, area) pair.
	Values []*int64
}

// Value returns the value in column i and whether it is present.
func (r Row) Value(i int) (int64, bool) {
	if i < 0 || i >= len(r.Values) || r.Values[i] == nil {
		return 0, false
	}
	return *r.Values[i], true
}

// Time parses the row date.
func (r Row) Time() (time.Time, error) {
	t, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse row date %q: %w", r.Date, err)
	}
	return t, nil
}
