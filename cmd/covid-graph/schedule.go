package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/covid-graph/pkg/logging"
	"github.com/Sternrassler/covid-graph/pkg/pipeline"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newScheduleCmd(a *app) *cobra.Command {
	var (
		flags  specFlags
		expr   string
		runNow bool
	)

	cmd := &cobra.Command{
		Use:   "schedule --cron <expr> [generate flags]",
		Short: "Regenerate a graph on a cron schedule until interrupted.",
		Example: "  covid-graph schedule --cron \"0 8 * * *\" --area-type nation --areas all --days 30\n" +
			"  covid-graph schedule --cron \"@every 6h\" --data admissions --now",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := flags.spec()
			if err != nil {
				return err
			}

			logger := logging.NewLogger("scheduler")
			job := func() {
				res, err := a.pipeline.Run(cmd.Context(), spec)
				switch {
				case errors.Is(err, pipeline.ErrNoData):
					logger.Warn().Str("filters", spec.Filter()).Msg("Scheduled run found no data")
				case err != nil:
					logger.Error().Err(err).Msg("Scheduled run failed")
				default:
					logger.Info().Str("run_id", res.RunID).Str("path", res.Path).Msg("Scheduled run complete")
				}
			}

			return runSchedule(cmd.Context(), expr, runNow, job, logger)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&expr, "cron", "0 8 * * *", "Cron expression (5 fields or @every/@daily descriptors)")
	cmd.Flags().BoolVar(&runNow, "now", false, "Also run once immediately")

	return cmd
}

// runSchedule runs job on expr until ctx is done. Overlapping runs are
// skipped, so at most one job runs at a time. It returns once every started
// run, including the runNow one, has finished.
func runSchedule(ctx context.Context, expr string, runNow bool, job func(), logger zerolog.Logger) error {
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	id, err := c.AddFunc(expr, job)
	if err != nil {
		return fmt.Errorf("parse cron expression %q: %w", expr, err)
	}

	entry := c.Entry(id)
	var immediate sync.WaitGroup
	if runNow {
		// Goes through the chain so a scheduled tick skips while it runs.
		immediate.Add(1)
		go func() {
			defer immediate.Done()
			entry.WrappedJob.Run()
		}()
	}

	c.Start()
	logger.Info().Str("cron", expr).Time("next", entry.Schedule.Next(time.Now())).Msg("Scheduler started")

	<-ctx.Done()

	logger.Info().Msg("Scheduler stopping")
	<-c.Stop().Done()
	immediate.Wait()
	return nil
}

// cronLogger routes cron's logging through zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msgf("cron: %s", msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msgf("cron: %s", msg)
}
