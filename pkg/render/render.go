// Package render turns a pivoted table into an artifact: a chart image file
// or a terminal table.
package render

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/covid-graph/pkg/query"
	"github.com/Sternrassler/covid-graph/pkg/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrEmptyChart is returned when there is nothing to draw.
var ErrEmptyChart = errors.New("chart has no values")

var rendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "covid_renders_total",
	Help: "Total render attempts by renderer and result",
}, []string{"renderer", "result"})

// Chart is the input to a renderer. Values in each row line up with AreaNames.
type Chart struct {
	Rows      []table.Row
	AreaNames []string
	DataType  query.DataType
	CountType query.CountType
}

// Title returns e.g. "New Cases".
func (c Chart) Title() string {
	return c.CountType.Title() + " " + c.DataType.Title()
}

// Renderer produces an artifact from a chart and returns its location, or ""
// when the artifact is not a file.
type Renderer interface {
	Render(ctx context.Context, chart Chart) (string, error)
}

// FileName returns "<TIMEHASH>-<Count>-<Data>-Graph.<ext>", where TIMEHASH is
// the upper-case base-36 millisecond timestamp.
func FileName(now time.Time, countType query.CountType, dataType query.DataType, ext string) string {
	hash := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return fmt.Sprintf("%s-%s-%s-Graph.%s", hash, countType.Title(), dataType.Title(), ext)
}

// Multi renders with each renderer in order and returns the first non-empty
// location. It stops at the first error.
type Multi []Renderer

// Render implements Renderer.
func (m Multi) Render(ctx context.Context, chart Chart) (string, error) {
	var location string
	for _, r := range m {
		loc, err := r.Render(ctx, chart)
		if err != nil {
			return location, err
		}
		if location == "" {
			location = loc
		}
	}
	return location, nil
}

func observe(renderer string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	rendersTotal.WithLabelValues(renderer, result).Inc()
}
