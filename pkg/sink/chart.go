package sink

import (
	"fmt"
	"io"
	"math"

	"github.com/guptarohit/asciigraph"

	"github.com/akhildatla/tabular/pkg/table"
)

// Chart draws one ASCII line chart per column, in table order. Rows whose
// value is null are skipped. When x names a column, the first and last x
// values of the plotted rows appear in the caption.
func Chart(w io.Writer, t *table.Table, x string, columns []string, height int) error {
	if t == nil {
		return ErrNilTable
	}
	if height <= 0 {
		height = 10
	}
	if len(columns) == 0 {
		for _, f := range t.Schema() {
			if f.Kind.Numeric() && f.Name != x {
				columns = append(columns, f.Name)
			}
		}
	}
	if len(columns) == 0 {
		return ErrNothingPlot
	}

	var xcol *table.Column
	if x != "" {
		c, err := t.Column(x)
		if err != nil {
			return err
		}
		xcol = c
	}

	for _, name := range columns {
		c, err := t.Column(name)
		if err != nil {
			return err
		}
		if !c.Kind().Numeric() {
			return fmt.Errorf("%w: %s is %s", ErrNotNumeric, name, c.Kind())
		}

		var series []float64
		first, last := -1, -1
		for i := 0; i < c.Len(); i++ {
			v, ok := c.Float(i)
			if !ok || math.IsNaN(v) {
				continue
			}
			if first < 0 {
				first = i
			}
			last = i
			series = append(series, v)
		}
		if len(series) == 0 {
			return fmt.Errorf("%w: %s has no values", ErrNothingPlot, name)
		}

		caption := name
		if xcol != nil {
			caption = fmt.Sprintf("%s (%s .. %s)", name,
				table.FormatValue(xcol.Value(first)), table.FormatValue(xcol.Value(last)))
		}
		plot := asciigraph.Plot(series, asciigraph.Height(height), asciigraph.Caption(caption))
		if _, err := fmt.Fprintln(w, plot); err != nil {
			return err
		}
	}
	return nil
}
