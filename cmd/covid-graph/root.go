package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/covid-graph/internal/config"
	"github.com/Sternrassler/covid-graph/pkg/client"
	"github.com/Sternrassler/covid-graph/pkg/logging"
	"github.com/Sternrassler/covid-graph/pkg/metrics"
	"github.com/Sternrassler/covid-graph/pkg/pagination"
	"github.com/Sternrassler/covid-graph/pkg/pipeline"
	"github.com/Sternrassler/covid-graph/pkg/prompt"
	"github.com/Sternrassler/covid-graph/pkg/ratelimit"
	"github.com/Sternrassler/covid-graph/pkg/render"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline

	// flag values
	envFile     string
	logLevel    string
	pretty      bool
	metricsAddr string
	outDir      string
	format      string
	showTable   bool

	closers []func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "covid-graph",
		Short: "Generate graphs of UK COVID-19 data from the coronavirus dashboard API.",
		Long: "covid-graph asks which data, areas and timeframe to plot, fetches the\n" +
			"series from api.coronavirus.data.gov.uk and writes a line chart.\n" +
			"Run without a subcommand for the interactive session.",
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error { return a.close() },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInteractive(cmd.Context(), a.pipeline, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.envFile, "env-file", ".env", "Load variables from this file if it exists")
	f.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error, disabled (env LOG_LEVEL)")
	f.BoolVar(&a.pretty, "pretty", true, "Human-readable log output (env LOG_PRETTY)")
	f.StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (env METRICS_ADDR)")
	f.StringVar(&a.outDir, "out", "", "Directory graphs are written to (env GRAPH_DIR)")
	f.StringVar(&a.format, "format", "", "Graph format: png or svg (env GRAPH_FORMAT)")
	f.BoolVar(&a.showTable, "table", false, "Also print the data as a table")

	cmd.AddCommand(newGenerateCmd(a), newScheduleCmd(a))

	return cmd
}

// setup loads configuration, applies flag overrides, configures logging and
// metrics, and builds the pipeline.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logger.Level = a.logLevel
	}
	if flags.Changed("pretty") {
		cfg.Logger.Pretty = a.pretty
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = a.metricsAddr
	}
	if flags.Changed("out") {
		cfg.Graph.Dir = a.outDir
	}
	if flags.Changed("format") {
		cfg.Graph.Format = a.format
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	level, _ := logging.ParseLevel(cfg.Logger.Level)
	logging.Setup(logging.Config{
		Level:  level,
		Pretty: cfg.Logger.Pretty,
		Output: cmd.ErrOrStderr(),
	})

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cmd.Context(), cfg.MetricsAddr); err != nil {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics server failed")
			}
		}()
	}

	var out io.Writer
	if a.showTable {
		out = cmd.OutOrStdout()
	}
	p, err := a.buildPipeline(cmd.Context(), out)
	if err != nil {
		return err
	}
	a.pipeline = p

	return nil
}

func (a *app) buildPipeline(ctx context.Context, tableOut io.Writer) (*pipeline.Pipeline, error) {
	cfg := a.cfg

	tracker := ratelimit.NewTracker(a.throttleStore(ctx), trackerConfig(cfg), logging.NewLogger("ratelimit"))

	apiClient, err := client.New(client.Config{
		BaseURL:   cfg.API.BaseURL,
		UserAgent: cfg.API.UserAgent,
		Timeout:   cfg.API.PageTimeout,
		Tracker:   tracker,
	})
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	fetcher := pagination.NewFetcher(apiClient, pagination.Config{
		PageTimeout: cfg.API.PageTimeout,
		MaxPages:    cfg.API.MaxPages,
	})

	chart, err := render.NewChartRenderer(render.ChartConfig{
		Dir:           cfg.Graph.Dir,
		Format:        cfg.Graph.Format,
		Width:         cfg.Graph.Width,
		Height:        cfg.Graph.Height,
		MovingAverage: cfg.Graph.MovingAverage,
	})
	if err != nil {
		return nil, fmt.Errorf("create chart renderer: %w", err)
	}

	var renderer render.Renderer = chart
	if tableOut != nil {
		renderer = render.Multi{chart, render.NewTableRenderer(tableOut)}
	}

	return pipeline.New(fetcher, renderer), nil
}

// trackerConfig paces requests as configured. A cool-down is only slept
// through when it fits inside one page timeout; longer ones fail fast with
// ratelimit.ErrBlocked.
func trackerConfig(cfg *config.Config) ratelimit.Config {
	maxWait := ratelimit.DefaultMaxWait
	if cfg.API.PageTimeout < maxWait {
		maxWait = cfg.API.PageTimeout
	}
	return ratelimit.Config{
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             1,
		MaxWait:           maxWait,
	}
}

// throttleStore returns a Redis-backed store when REDIS_URL is set and
// reachable, and a process-local store otherwise.
func (a *app) throttleStore(ctx context.Context) ratelimit.Store {
	if a.cfg.Redis.URL == "" {
		return ratelimit.NewMemoryStore()
	}

	opts, err := redis.ParseURL(a.cfg.Redis.URL)
	if err != nil {
		log.Warn().Err(err).Msg("Invalid REDIS_URL - using in-memory throttle state")
		return ratelimit.NewMemoryStore()
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		log.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis unavailable - using in-memory throttle state")
		return ratelimit.NewMemoryStore()
	}

	log.Info().Str("addr", opts.Addr).Msg("Sharing throttle state through Redis")
	a.closers = append(a.closers, rdb.Close)
	return ratelimit.NewRedisStore(rdb)
}

func (a *app) close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// runInteractive repeats prompt, fetch and render until the user declines
// another graph or input ends.
func runInteractive(ctx context.Context, p *pipeline.Pipeline, in io.Reader, out, status io.Writer) error {
	pr := prompt.New(in, out)
	pr.Welcome()

	for {
		spec, err := pr.Options()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		stop := prompt.Loading(status, "Generating COVID-19 Graph", 250*time.Millisecond)
		res, err := p.Run(ctx, spec)
		stop()

		switch {
		case errors.Is(err, pipeline.ErrNoData):
			fmt.Fprint(out, "No data is available for those options.\n\n")
		case err != nil:
			log.Error().Err(err).Msg("Graph generation failed")
			fmt.Fprint(out, "Error occurred generating graph.\n\n")
		case res.Path != "":
			fmt.Fprintf(out, "Graph generated successfully.\nSaved to %q\n\n", res.Path)
		}

		if ctx.Err() != nil {
			return nil
		}

		again, err := pr.Again()
		if errors.Is(err, io.EOF) || (err == nil && !again) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
