// Package metrics exposes the Prometheus metrics registered by the other
// packages (client, pagination, ratelimit, pipeline, render).
//
// Metrics are defined with promauto next to the code that updates them; this
// package only serves them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry all packages register with.
var Registry = prometheus.DefaultRegisterer

// Path is where Serve exposes metrics.
const Path = "/metrics"

// Handler returns the HTTP handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes Path on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle(Path, Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - covid_api_requests_total{status} (Counter): page requests by HTTP status
//   - covid_api_request_duration_seconds (Histogram): page request duration
//   - covid_api_errors_total{class} (Counter): failures by class
//     (no_data, client, server, rate_limit, network, unexpected, decode)
//
// Pagination Metrics (pkg/pagination):
//   - covid_pages_fetched_total (Counter): pages fetched successfully
//   - covid_fetch_partial_total{reason} (Counter): walks cut short
//     (timeout, canceled, error, max_pages)
//   - covid_entries_fetched_total (Counter): raw entries returned
//
// Rate Limit Metrics (pkg/ratelimit):
//   - covid_rate_limit_waits_total (Counter): requests that sat out a cool-down
//   - covid_rate_limit_blocks_total (Counter): requests refused during a cool-down
//   - covid_rate_limit_cooldowns_total (Counter): 429 cool-downs recorded
//
// Pipeline Metrics (pkg/pipeline):
//   - covid_rows_pivoted_total (Counter): table rows produced
//   - covid_runs_total{result} (Counter): runs by outcome (ok, no_data, error)
//
// Render Metrics (pkg/render):
//   - covid_renders_total{renderer, result} (Counter): render attempts
//
// Example Prometheus Queries:
//
//   # Share of walks returning partial data
//   sum(rate(covid_fetch_partial_total[1h])) / sum(rate(covid_runs_total[1h]))
//
//   # API error rate by class
//   rate(covid_api_errors_total[5m])
//
//   # P95 page latency
//   histogram_quantile(0.95, rate(covid_api_request_duration_seconds_bucket[5m]))
