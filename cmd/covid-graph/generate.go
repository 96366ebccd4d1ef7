package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/covid-graph/pkg/pipeline"
	"github.com/Sternrassler/covid-graph/pkg/prompt"
	"github.com/Sternrassler/covid-graph/pkg/query"
	"github.com/spf13/cobra"
)

// specFlags are the non-interactive equivalents of the prompts.
type specFlags struct {
	areaType  string
	areas     string
	dataType  string
	countType string
	days      int
}

func (s *specFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.areaType, "area-type", string(query.AreaOverview), "Area type: overview, nation or region")
	f.StringVar(&s.areas, "areas", "", `Comma-separated area names, or "all" (ignored for overview)`)
	f.StringVar(&s.dataType, "data", string(query.DataCases), "Data type: cases, deaths, tests or admissions")
	f.StringVar(&s.countType, "count", string(query.CountNew), "Count type: new or accumulative")
	f.IntVar(&s.days, "days", 0, "Keep the most recent N days: 0 (all), 180, 90, 30 or 7")
}

// spec resolves the flags into a validated query spec.
func (s *specFlags) spec() (query.Spec, error) {
	areaType, err := query.ParseAreaType(s.areaType)
	if err != nil {
		return query.Spec{}, err
	}
	dataType, err := query.ParseDataType(s.dataType)
	if err != nil {
		return query.Spec{}, err
	}
	countType, err := query.ParseCountType(s.countType)
	if err != nil {
		return query.Spec{}, err
	}

	if areaType == query.AreaOverview {
		spec := query.Overview(dataType, countType, s.days)
		return spec, spec.Validate()
	}

	names, unknown := prompt.ParseAreaNames(areaType, s.areas)
	if len(unknown) > 0 {
		msgs := make([]string, 0, len(unknown))
		for _, u := range unknown {
			msg := fmt.Sprintf("unknown %s %q", areaType, u)
			if suggestion, ok := prompt.Suggest(areaType, u); ok {
				msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
			}
			msgs = append(msgs, msg)
		}
		return query.Spec{}, fmt.Errorf("%w: %s", query.ErrInvalidSpec, strings.Join(msgs, ", "))
	}

	spec := query.Spec{
		AreaNames: names,
		AreaType:  areaType,
		DataType:  dataType,
		CountType: countType,
		Timeframe: s.days,
	}
	return spec, spec.Validate()
}

func newGenerateCmd(a *app) *cobra.Command {
	var flags specFlags

	cmd := &cobra.Command{
		Use:   "generate [--area-type <type>] [--areas <names>] [--data <type>] [--count <type>] [--days <n>]",
		Short: "Generate one graph and exit.",
		Example: "  covid-graph generate --area-type nation --areas \"England, Wales\" --data deaths --days 90\n" +
			"  covid-graph generate --area-type region --areas all --count accumulative",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := flags.spec()
			if err != nil {
				return err
			}

			res, err := a.pipeline.Run(cmd.Context(), spec)
			if errors.Is(err, pipeline.ErrNoData) {
				return fmt.Errorf("%s %s for %s: %w", spec.CountType, spec.DataType, strings.Join(spec.AreaNames, ", "), err)
			}
			if err != nil {
				return err
			}

			if res.Path != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.Path)
			}
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}
