// Package sink writes tables out: delimited text, Parquet files,
// bordered terminal tables and ASCII line charts.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rocketlaunchr/dataframe-go/exports"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"

	"github.com/akhildatla/tabular/pkg/table"
)

var (
	ErrNilTable    = errors.New("nil table")
	ErrNotNumeric  = errors.New("column is not numeric")
	ErrNothingPlot = errors.New("nothing to plot")
)

// CSVOptions controls delimited text output.
type CSVOptions struct {
	// Delimiter defaults to ','.
	Delimiter rune
	// NullString is written for missing values. Empty by default.
	NullString string
	UseCRLF    bool
}

// WriteCSV writes t to w as delimited text with a header row. Values
// are rendered as in text output, so dates without a time of day are
// written as YYYY-MM-DD.
func WriteCSV(ctx context.Context, w io.Writer, t *table.Table, opts CSVOptions) error {
	if t == nil {
		return ErrNilTable
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	null := opts.NullString
	df := t.DataFrame()
	for _, s := range df.Series {
		s.SetValueToStringFormatter(table.FormatValue)
	}
	return exports.ExportToCSV(ctx, w, df, exports.CSVExportOptions{
		NullString: &null,
		Separator:  opts.Delimiter,
		UseCRLF:    opts.UseCRLF,
	})
}

// ParquetOptions controls Parquet output.
type ParquetOptions struct {
	// Compression defaults to snappy.
	Compression string
}

func compressionCodec(name string) (parquet.CompressionCodec, error) {
	if name == "" {
		return parquet.CompressionCodec_SNAPPY, nil
	}
	return parquet.CompressionCodecFromString(strings.ToUpper(name))
}

// WriteParquet writes t to a Parquet file at path. Column names are
// lower-cased by the encoder.
func WriteParquet(ctx context.Context, path string, t *table.Table, opts ParquetOptions) error {
	if t == nil {
		return ErrNilTable
	}
	codec, err := compressionCodec(opts.Compression)
	if err != nil {
		return fmt.Errorf("parquet compression %q: %w", opts.Compression, err)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	if err := exports.ExportToParquet(ctx, fw, t.DataFrame(), exports.ParquetExportOptions{
		CompressionType: &codec,
	}); err != nil {
		fw.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return fw.Close()
}
