package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/akhildatla/tabular/pkg/sink"
	"github.com/akhildatla/tabular/pkg/table"
)

var ErrUnknownFormat = errors.New("unknown output format")

// outputOptions are the flags shared by commands that emit a table.
type outputOptions struct {
	format  string
	out     string
	maxRows int
	chartX  string
	chartY  []string
	height  int
}

// resolveFormat picks the format from the flag, then the output file
// extension, then table.
func (o outputOptions) resolveFormat() string {
	if o.format != "" {
		return strings.ToLower(o.format)
	}
	switch strings.ToLower(filepath.Ext(o.out)) {
	case ".csv":
		return "csv"
	case ".tsv":
		return "tsv"
	case ".parquet", ".pq":
		return "parquet"
	}
	return "table"
}

func writeValue(ctx context.Context, w io.Writer, v any, o outputOptions) error {
	switch val := v.(type) {
	case *table.Table:
		return writeTable(ctx, w, val, o)
	case *table.Column:
		t, err := table.New(val)
		if err != nil {
			return err
		}
		return writeTable(ctx, w, t, o)
	case nil:
		return nil
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = table.FormatValue(e)
		}
		_, err := fmt.Fprintf(w, "[%s]\n", strings.Join(parts, ", "))
		return err
	default:
		_, err := fmt.Fprintln(w, table.FormatValue(val))
		return err
	}
}

func writeTable(ctx context.Context, w io.Writer, t *table.Table, o outputOptions) (err error) {
	format := o.resolveFormat()
	switch format {
	case "table", "csv", "tsv", "chart", "parquet":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if format == "parquet" {
		if o.out == "" {
			return fmt.Errorf("parquet output needs --out")
		}
		return sink.WriteParquet(ctx, o.out, t, sink.ParquetOptions{})
	}

	if o.out != "" {
		f, err := os.Create(o.out)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	switch format {
	case "table":
		return sink.Print(w, t, o.maxRows)
	case "csv":
		return sink.WriteCSV(ctx, w, t, sink.CSVOptions{})
	case "tsv":
		return sink.WriteCSV(ctx, w, t, sink.CSVOptions{Delimiter: '\t'})
	case "chart":
		return sink.Chart(w, t, o.chartX, o.chartY, o.height)
	}
	return nil
}
