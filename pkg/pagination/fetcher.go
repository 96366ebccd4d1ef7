package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/covid-graph/pkg/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Reasons a fetch ended before the last page.
const (
	ReasonTimeout  = "timeout"
	ReasonCanceled = "canceled"
	ReasonError    = "error"
	ReasonMaxPages = "max_pages"
)

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covid_pages_fetched_total",
		Help: "Total pages fetched successfully",
	})

	fetchPartialTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covid_fetch_partial_total",
		Help: "Total fetches that returned partial results, by reason",
	}, []string{"reason"})

	entriesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covid_entries_fetched_total",
		Help: "Total raw entries returned by completed fetches",
	})
)

// Config holds fetcher configuration.
type Config struct {
	// PageTimeout bounds a single page request.
	PageTimeout time.Duration

	// MaxPages stops pagination after this many pages. 0 means no limit.
	MaxPages int
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		PageTimeout: 5 * time.Second,
		MaxPages:    1000,
	}
}

// PageFetcher requests a single page. *client.Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, filter string, structure query.Structure, page int) (*query.Page, error)
}

// Fetcher walks the pages of one query in order.
type Fetcher struct {
	pages  PageFetcher
	config Config
	logger zerolog.Logger
}

// NewFetcher creates a new fetcher.
func NewFetcher(pages PageFetcher, config Config) *Fetcher {
	if config.PageTimeout <= 0 {
		config.PageTimeout = 5 * time.Second
	}
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}

	return &Fetcher{
		pages:  pages,
		config: config,
		logger: log.With().Str("component", "pagination").Logger(),
	}
}

// FetchAll fetches page 1, then each following page while the server
// advertises one, and returns the concatenated entries in page order.
//
// A 204 ends the walk normally. Any other failure ends it early and the
// entries gathered so far are returned with a nil error. The only error is
// ctx ending before the first page was requested.
func (f *Fetcher) FetchAll(ctx context.Context, filter string, structure query.Structure) ([]query.RawEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch %q: %w", filter, err)
	}

	start := time.Now()
	var entries []query.RawEntry

	for page := 1; ; page++ {
		if f.config.MaxPages > 0 && page > f.config.MaxPages {
			f.logger.Warn().
				Str("filters", filter).
				Int("max_pages", f.config.MaxPages).
				Int("entries", len(entries)).
				Msg("Page limit reached - returning partial results")
			fetchPartialTotal.WithLabelValues(ReasonMaxPages).Inc()
			break
		}

		pageCtx, cancel := context.WithTimeout(ctx, f.config.PageTimeout)
		result, err := f.pages.FetchPage(pageCtx, filter, structure, page)
		cancel()

		if errors.Is(err, query.ErrNoData) {
			f.logger.Info().
				Str("filters", filter).
				Int("page", page).
				Int("entries", len(entries)).
				Msg("No more data")
			break
		}

		if err != nil {
			reason := partialReason(ctx, err)
			f.logger.Warn().
				Err(err).
				Str("filters", filter).
				Int("page", page).
				Int("entries", len(entries)).
				Str("reason", reason).
				Msg("Page fetch failed - returning partial results")
			fetchPartialTotal.WithLabelValues(reason).Inc()
			break
		}

		pagesFetchedTotal.Inc()
		entries = append(entries, result.Entries...)

		f.logger.Debug().
			Int("page", page).
			Int("entries", len(result.Entries)).
			Msg("Page fetched")

		if result.Next == "" {
			break
		}
	}

	entriesFetchedTotal.Add(float64(len(entries)))

	f.logger.Info().
		Str("filters", filter).
		Int("entries", len(entries)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return entries, nil
}

func partialReason(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	default:
		return ReasonError
	}
}
