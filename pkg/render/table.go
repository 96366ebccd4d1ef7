package render

import (
	"context"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableRenderer prints the rows as a terminal table. Absent values are blank.
type TableRenderer struct {
	out io.Writer
}

// NewTableRenderer creates a table renderer writing to out.
func NewTableRenderer(out io.Writer) *TableRenderer {
	return &TableRenderer{out: out}
}

// Render implements Renderer. It writes no file, so the location is "".
func (r *TableRenderer) Render(ctx context.Context, c Chart) (_ string, err error) {
	defer func() { observe("table", err) }()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(c.Rows) == 0 {
		return "", ErrEmptyChart
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(c.Title())

	header := table.Row{"Date"}
	configs := []table.ColumnConfig{{Number: 1, Align: text.AlignLeft}}
	for i, name := range c.AreaNames {
		header = append(header, name)
		configs = append(configs, table.ColumnConfig{Number: i + 2, Align: text.AlignRight})
	}
	t.AppendHeader(header)
	t.SetColumnConfigs(configs)

	for _, row := range c.Rows {
		cells := table.Row{row.Date}
		for i := range c.AreaNames {
			if v, ok := row.Value(i); ok {
				cells = append(cells, groupThousands(v))
			} else {
				cells = append(cells, "")
			}
		}
		t.AppendRow(cells)
	}

	t.SetStyle(table.StyleRounded)
	// Area names are labels; keep them as given.
	t.Style().Format.Header = text.FormatDefault
	t.Style().Title.Format = text.FormatDefault
	t.Render()

	return "", nil
}
