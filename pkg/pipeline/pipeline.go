// Package pipeline runs one graph request end to end: fetch every page,
// pivot the entries into rows, keep the requested window and render.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/covid-graph/pkg/query"
	"github.com/Sternrassler/covid-graph/pkg/render"
	"github.com/Sternrassler/covid-graph/pkg/table"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoData means the API returned nothing for the request. Nothing is
	// rendered.
	ErrNoData = errors.New("no data for the selected options")

	// ErrRender wraps renderer failures.
	ErrRender = errors.New("render failed")
)

var (
	rowsPivotedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covid_rows_pivoted_total",
		Help: "Total table rows produced by pivoting",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covid_runs_total",
		Help: "Total pipeline runs by result",
	}, []string{"result"})
)

// EntryFetcher returns every entry for a query. *pagination.Fetcher
// implements it.
type EntryFetcher interface {
	FetchAll(ctx context.Context, filter string, structure query.Structure) ([]query.RawEntry, error)
}

// Result describes one run.
type Result struct {
	RunID string
	Spec  query.Spec

	// Entries is the number of raw entries fetched.
	Entries int

	// Rows is the windowed table handed to the renderer.
	Rows []table.Row

	// Path is the renderer's artifact location, if any.
	Path string
}

// Chart returns the renderer input for the result.
func (r *Result) Chart() render.Chart {
	return render.Chart{
		Rows:      r.Rows,
		AreaNames: r.Spec.AreaNames,
		DataType:  r.Spec.DataType,
		CountType: r.Spec.CountType,
	}
}

// Pipeline wires a fetcher to a renderer.
type Pipeline struct {
	fetcher  EntryFetcher
	renderer render.Renderer
	logger   zerolog.Logger
	newID    func() string
}

// New creates a pipeline. renderer may be nil, in which case Run only builds
// the table.
func New(fetcher EntryFetcher, renderer render.Renderer) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		renderer: renderer,
		logger:   log.With().Str("component", "pipeline").Logger(),
		newID:    uuid.NewString,
	}
}

// Build fetches, pivots and windows the data for spec.
func (p *Pipeline) Build(ctx context.Context, spec query.Spec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec = spec.Canonical()

	res := &Result{RunID: p.newID(), Spec: spec}
	logger := p.logger.With().Str("run_id", res.RunID).Logger()
	start := time.Now()

	entries, err := p.fetcher.FetchAll(ctx, spec.Filter(), spec.Structure())
	if err != nil {
		return nil, fmt.Errorf("fetch entries: %w", err)
	}
	res.Entries = len(entries)

	rows := table.Pivot(entries, spec.AreaNames)
	rowsPivotedTotal.Add(float64(len(rows)))
	if len(rows) == 0 {
		logger.Info().
			Str("filters", spec.Filter()).
			Int("entries", len(entries)).
			Msg("No data for request")
		return nil, ErrNoData
	}

	res.Rows = table.Window(rows, spec.Timeframe)

	logger.Info().
		Int("entries", res.Entries).
		Int("rows", len(res.Rows)).
		Int("timeframe", spec.Timeframe).
		Dur("duration", time.Since(start)).
		Msg("Table built")

	return res, nil
}

// Run builds the table for spec and renders it.
//
// It returns ErrNoData when there is nothing to draw and an error wrapping
// ErrRender when the renderer fails.
func (p *Pipeline) Run(ctx context.Context, spec query.Spec) (*Result, error) {
	res, err := p.Build(ctx, spec)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			runsTotal.WithLabelValues("no_data").Inc()
		} else {
			runsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if p.renderer != nil {
		path, err := p.renderer.Render(ctx, res.Chart())
		if err != nil {
			runsTotal.WithLabelValues("error").Inc()
			p.logger.Error().
				Err(err).
				Str("run_id", res.RunID).
				Msg("Render failed")
			return res, fmt.Errorf("%w: %w", ErrRender, err)
		}
		res.Path = path
	}

	runsTotal.WithLabelValues("ok").Inc()
	return res, nil
}
