package table

import (
	"sort"
	"strings"

	"github.com/Sternrassler/covid-graph/pkg/query"
)

// Pivot turns entries into rows sorted ascending by date.
//
// With a single area each entry becomes its own row. With several areas
// entries are grouped by date and each value is written to the column of its
// area, matched case-insensitively. Entries for areas that were not requested
// are ignored.
func Pivot(entries []query.RawEntry, areaNames []string) []Row {
	var rows []Row

	switch {
	case len(areaNames) == 1:
		rows = make([]Row, 0, len(entries))
		for _, entry := range entries {
			rows = append(rows, Row{
				Date:   entry.Date,
				Values: []*int64{entry.DataCount},
			})
		}
	case len(areaNames) > 1:
		rows = pivotAreas(entries, areaNames)
	default:
		return nil
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date < rows[j].Date
	})

	return rows
}

func pivotAreas(entries []query.RawEntry, areaNames []string) []Row {
	columns := make(map[string]int, len(areaNames))
	for i, name := range areaNames {
		columns[normalizeArea(name)] = i
	}

	byDate := newDateIndex(len(areaNames))
	for _, entry := range entries {
		column, ok := columns[normalizeArea(entry.AreaName)]
		if !ok {
			continue
		}
		byDate.row(entry.Date)[column] = entry.DataCount
	}

	return byDate.rows()
}

// normalizeArea is the single place area names are folded for matching.
func normalizeArea(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// dateIndex groups fixed-width value slices by date, remembering first-seen
// order so extraction does not depend on map iteration.
type dateIndex struct {
	width  int
	order  []string
	values map[string][]*int64
}

func newDateIndex(width int) *dateIndex {
	return &dateIndex{
		width:  width,
		values: make(map[string][]*int64),
	}
}

func (d *dateIndex) row(date string) []*int64 {
	values, ok := d.values[date]
	if !ok {
		values = make([]*int64, d.width)
		d.values[date] = values
		d.order = append(d.order, date)
	}
	return values
}

func (d *dateIndex) rows() []Row {
	rows := make([]Row, 0, len(d.order))
	for _, date := range d.order {
		rows = append(rows, Row{Date: date, Values: d.values[date]})
	}
	return rows
}
