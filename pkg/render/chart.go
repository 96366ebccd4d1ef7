package render

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wcharczuk/go-chart/v2"
)

// Image formats supported by ChartRenderer.
const (
	FormatPNG = "png"
	FormatSVG = "svg"
)

// ChartConfig holds chart renderer configuration.
type ChartConfig struct {
	// Dir is where graphs are written. Created if missing.
	Dir string

	// Format is FormatPNG or FormatSVG.
	Format string

	Width  int
	Height int

	// MovingAverage overlays an N-day simple moving average per area when > 1.
	MovingAverage int
}

// DefaultChartConfig returns a 1920x1080 PNG written to ./graphs.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Dir:    "graphs",
		Format: FormatPNG,
		Width:  1920,
		Height: 1080,
	}
}

// ChartRenderer draws one line per area and writes the image to disk.
type ChartRenderer struct {
	config ChartConfig
	logger zerolog.Logger
	now    func() time.Time
}

// NewChartRenderer validates cfg and creates a chart renderer.
func NewChartRenderer(cfg ChartConfig) (*ChartRenderer, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("graph directory is required")
	}
	if cfg.Format != FormatPNG && cfg.Format != FormatSVG {
		return nil, fmt.Errorf("unsupported graph format %q (want png or svg)", cfg.Format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("graph size must be positive (got %dx%d)", cfg.Width, cfg.Height)
	}

	return &ChartRenderer{
		config: cfg,
		logger: log.With().Str("component", "chart-renderer").Logger(),
		now:    time.Now,
	}, nil
}

// Render implements Renderer. It returns the absolute path of the written file.
func (r *ChartRenderer) Render(ctx context.Context, c Chart) (path string, err error) {
	defer func() { observe("chart", err) }()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	graph, err := r.build(c)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.config.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create graph directory: %w", err)
	}

	name := FileName(r.now(), c.CountType, c.DataType, r.config.Format)
	path, err = filepath.Abs(filepath.Join(r.config.Dir, name))
	if err != nil {
		return "", fmt.Errorf("resolve graph path: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create graph file: %w", err)
	}

	provider := chart.PNG
	if r.config.Format == FormatSVG {
		provider = chart.SVG
	}

	if err := graph.Render(provider, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("render %s: %w", c.Title(), err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write graph file: %w", err)
	}

	r.logger.Info().
		Str("path", path).
		Int("rows", len(c.Rows)).
		Int("areas", len(c.AreaNames)).
		Msg("Graph written")

	return path, nil
}

func (r *ChartRenderer) build(c Chart) (*chart.Chart, error) {
	var series []chart.Series
	maxY := 0.0
	minY := 0.0

	for i, name := range c.AreaNames {
		var xs []time.Time
		var ys []float64

		for _, row := range c.Rows {
			v, ok := row.Value(i)
			if !ok {
				continue
			}
			t, err := row.Time()
			if err != nil {
				return nil, fmt.Errorf("row %q: %w", row.Date, err)
			}
			y := float64(v)
			xs = append(xs, t)
			ys = append(ys, y)
			maxY = math.Max(maxY, y)
			minY = math.Min(minY, y)
		}

		if len(xs) == 0 {
			continue
		}
		// go-chart needs at least two x values per series.
		if len(xs) == 1 {
			xs = append(xs, xs[0].Add(24*time.Hour))
			ys = append(ys, ys[0])
		}

		color := chart.GetDefaultColor(i)
		ts := chart.TimeSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: color,
				StrokeWidth: 2,
			},
		}
		series = append(series, ts)

		if r.config.MovingAverage > 1 && len(xs) >= r.config.MovingAverage {
			series = append(series, chart.SMASeries{
				Name:        fmt.Sprintf("%s (%d-day avg)", name, r.config.MovingAverage),
				Period:      r.config.MovingAverage,
				InnerSeries: ts,
				Style: chart.Style{
					StrokeColor:     color.WithAlpha(96),
					StrokeWidth:     2,
					StrokeDashArray: []float64{5, 5},
				},
			})
		}
	}

	if len(series) == 0 {
		return nil, ErrEmptyChart
	}

	if maxY <= minY {
		maxY = minY + 1
	}

	graph := &chart.Chart{
		Title:  c.Title(),
		Width:  r.config.Width,
		Height: r.config.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           c.Title(),
			Range:          &chart.ContinuousRange{Min: minY, Max: maxY * 1.05},
			ValueFormatter: countFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(graph)}

	return graph, nil
}

func countFormatter(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return fmt.Sprint(v)
	}
	return groupThousands(int64(math.Round(f)))
}

// groupThousands formats 1234567 as "1,234,567".
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}

	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return sign + string(out)
}
