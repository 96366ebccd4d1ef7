package table

import (
	"fmt"
	"testing"

	"github.com/Sternrassler/covid-graph/pkg/query"
	"github.com/google/go-cmp/cmp"
)

func n(v int64) *int64 { return &v }

func TestPivot_MultipleAreas(t *testing.T) {
	entries := []query.RawEntry{
		{Date: "2021-01-02", AreaName: "England", DataCount: n(10)},
		{Date: "2021-01-01", AreaName: "England", DataCount: n(5)},
		{Date: "2021-01-01", AreaName: "Wales", DataCount: n(2)},
	}

	got := Pivot(entries, []string{"England", "Wales"})

	want := []Row{
		{Date: "2021-01-01", Values: []*int64{n(5), n(2)}},
		{Date: "2021-01-02", Values: []*int64{n(10), nil}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Pivot() mismatch (-want +got):\n%s", diff)
	}
}

func TestPivot_ColumnsFollowRequestedOrder(t *testing.T) {
	entries := []query.RawEntry{
		{Date: "2021-03-01", AreaName: "Scotland", DataCount: n(3)},
		{Date: "2021-03-01", AreaName: "England", DataCount: n(1)},
		{Date: "2021-03-01", AreaName: "Northern Ireland", DataCount: n(4)},
		{Date: "2021-03-01", AreaName: "Wales", DataCount: n(2)},
	}

	got := Pivot(entries, []string{"Wales", "England", "Scotland"})

	want := []Row{
		{Date: "2021-03-01", Values: []*int64{n(2), n(1), n(3)}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Pivot() mismatch (-want +got):\n%s", diff)
	}
}

func TestPivot_AreaMatchIsCaseInsensitive(t *testing.T) {
	entries := []query.RawEntry{
		{Date: "2021-05-01", AreaName: "YORKSHIRE AND THE HUMBER", DataCount: n(7)},
		{Date: "2021-05-01", AreaName: "london", DataCount: n(9)},
	}

	got := Pivot(entries, []string{"London", "Yorkshire and The Humber"})

	want := []Row{
		{Date: "2021-05-01", Values: []*int64{n(9), n(7)}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Pivot() mismatch (-want +got):\n%s", diff)
	}
}

func TestPivot_NullCountsStayAbsent(t *testing.T) {
	entries := []query.RawEntry{
		{Date: "2021-01-01", AreaName: "England", DataCount: nil},
		{Date: "2021-01-01", AreaName: "Wales", DataCount: n(0)},
	}

	got := Pivot(entries, []string{"England", "Wales"})
	if len(got) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(got))
	}
	if _, ok := got[0].Value(0); ok {
		t.Error("England value should be absent")
	}
	if v, ok := got[0].Value(1); !ok || v != 0 {
		t.Errorf("Wales value = %d, %v, want 0, true", v, ok)
	}
}

func TestPivot_UnrequestedAreasIgnored(t *testing.T) {
	entries := []query.RawEntry{
		{Date: "2021-01-01", AreaName: "England", DataCount: n(1)},
		{Date: "2021-01-01", AreaName: "Scotland", DataCount: n(99)},
		{Date: "2021-01-02", AreaName: "Scotland", DataCount: n(98)},
	}

	got := Pivot(entries, []string{"England", "Wales"})

	// A date seen only for an ignored area produces no row.
	want := []Row{
		{Date: "2021-01-01", Values: []*int64{n(1), nil}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Pivot() mismatch (-want +got):\n%s", diff)
	}
}

func TestPivot_MultipleAreasSortedWithoutDuplicates(t *testing.T) {
	areas := []string{"London", "North East", "South West"}
	var entries []query.RawEntry
	// API order is newest first and interleaved by area.
	for day := 28; day >= 1; day-- {
		for i, area := range areas {
			if (day+i)%5 == 0 {
				continue
			}
			entries = append(entries, query.RawEntry{
				Date:      fmt.Sprintf("2021-02-%02d", day),
				AreaName:  area,
				DataCount: n(int64(day*10 + i)),
			})
		}
	}

	got := Pivot(entries, areas)

	if len(got) != 28 {
		t.Fatalf("len(rows) = %d, want 28", len(got))
	}
	for i, row := range got {
		if len(row.Values) != len(areas) {
			t.Errorf("row %s has %d columns, want %d", row.Date, len(row.Values), len(areas))
		}
		if i > 0 && got[i-1].Date >= row.Date {
			t.Errorf("rows not strictly ascending at %d: %s then %s", i, got[i-1].Date, row.Date)
		}
		for col := range areas {
			v, ok := row.Value(col)
			if !ok {
				continue
			}
			if want := int64((i+1)*10 + col); v != want {
				t.Errorf("row %s col %d = %d, want %d", row.Date, col, v, want)
			}
		}
	}
}

func TestPivot_SingleArea(t *testing.T) {
	entries := []query.RawEntry{
		{Date: "2021-01-01", DataCount: n(1)},
		{Date: "2021-01-02", DataCount: nil},
		{Date: "2021-01-03", DataCount: n(3)},
	}

	got := Pivot(entries, []string{query.OverviewAreaName})

	if len(got) != len(entries) {
		t.Fatalf("len(rows) = %d, want %d", len(got), len(entries))
	}
	for i, entry := range entries {
		want := Row{Date: entry.Date, Values: []*int64{entry.DataCount}}
		if diff := cmp.Diff(want, got[i]); diff != "" {
			t.Errorf("row %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestPivot_SingleAreaSortsNewestFirstInput(t *testing.T) {
	entries := []query.RawEntry{
		{Date: "2021-01-03", DataCount: n(3)},
		{Date: "2021-01-02", DataCount: n(2)},
		{Date: "2021-01-01", DataCount: n(1)},
	}

	got := Pivot(entries, []string{"Wales"})

	want := []Row{
		{Date: "2021-01-01", Values: []*int64{n(1)}},
		{Date: "2021-01-02", Values: []*int64{n(2)}},
		{Date: "2021-01-03", Values: []*int64{n(3)}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Pivot() mismatch (-want +got):\n%s", diff)
	}
}

func TestPivot_Empty(t *testing.T) {
	if got := Pivot(nil, []string{"England", "Wales"}); len(got) != 0 {
		t.Errorf("Pivot(nil) = %v, want empty", got)
	}
	if got := Pivot([]query.RawEntry{{Date: "2021-01-01"}}, nil); got != nil {
		t.Errorf("Pivot with no areas = %v, want nil", got)
	}
}

func TestRow_Time(t *testing.T) {
	row := Row{Date: "2021-12-31"}
	got, err := row.Time()
	if err != nil {
		t.Fatalf("Time() error = %v", err)
	}
	if got.Year() != 2021 || got.Month() != 12 || got.Day() != 31 {
		t.Errorf("Time() = %v", got)
	}

	if _, err := (Row{Date: "31/12/2021"}).Time(); err == nil {
		t.Error("Time() should reject non-ISO dates")
	}
}
