package sink

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/akhildatla/tabular/pkg/table"
)

// NullText is how Print renders missing values.
const NullText = "<null>"

// Print renders t as a bordered text table. When maxRows is positive and
// the table is longer, the first maxRows rows are shown followed by a
// footer noting how many were elided.
func Print(w io.Writer, t *table.Table, maxRows int) error {
	if t == nil {
		return ErrNilTable
	}

	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetHeader(t.Names())

	aligns := make([]int, t.NCols())
	for i, f := range t.Schema() {
		if f.Kind.Numeric() {
			aligns[i] = tablewriter.ALIGN_RIGHT
		} else {
			aligns[i] = tablewriter.ALIGN_LEFT
		}
	}
	tw.SetColumnAlignment(aligns)

	n := t.NRows()
	shown := n
	if maxRows > 0 && n > maxRows {
		shown = maxRows
	}
	cols := t.Columns()
	for i := 0; i < shown; i++ {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = cell(c.Value(i))
		}
		tw.Append(row)
	}
	tw.Render()

	if shown < n {
		if _, err := fmt.Fprintf(w, "... %d more rows\n", n-shown); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "[%d rows x %d columns]\n", n, t.NCols())
	return err
}

func cell(v any) string {
	if v == nil {
		return NullText
	}
	return strings.ReplaceAll(table.FormatValue(v), "\n", " ")
}
