package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Brownie44l1/ferplus/internal/model"
	"github.com/Brownie44l1/ferplus/internal/task"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatCSV, FormatMarkdown, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", errors.Errorf("unknown output format %q", s)
	}
}

// TableOptions tune WriteTable. Softmax only changes what is printed.
type TableOptions struct {
	Format    Format
	Softmax   bool
	Precision int
}

// WriteTable prints one row per region with a column per class plus the
// winning class.
func WriteTable(w io.Writer, t task.Table, opts TableOptions) error {
	if opts.Precision <= 0 {
		opts.Precision = 4
	}
	rows := make([]task.Row, len(t.Rows))
	for i, r := range t.Rows {
		values := r.Values
		if opts.Softmax {
			values = model.Softmax(values)
		}
		rows[i] = task.Row{Label: r.Label, Values: values}
	}

	if opts.Format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(task.Table{Headers: t.Headers, Rows: rows})
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)

	header := table.Row{"Region"}
	for _, h := range t.Headers {
		header = append(header, h)
	}
	header = append(header, "Emotion")
	tw.AppendHeader(header)

	valueFmt := fmt.Sprintf("%%.%df", opts.Precision)
	for _, r := range rows {
		row := table.Row{r.Label}
		for _, v := range r.Values {
			row = append(row, fmt.Sprintf(valueFmt, v))
		}
		best := ""
		if idx := model.Argmax(r.Values); idx >= 0 && idx < len(t.Headers) {
			best = t.Headers[idx]
		}
		row = append(row, best)
		tw.AppendRow(row)
	}

	switch opts.Format {
	case FormatCSV:
		tw.RenderCSV()
	case FormatMarkdown:
		tw.RenderMarkdown()
	default:
		tw.SetStyle(table.StyleLight)
		tw.Render()
	}
	return nil
}
