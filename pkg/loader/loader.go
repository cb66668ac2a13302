// Package loader reads CSV, JSON and Parquet files into tables.
package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/tabular/pkg/table"
)

// Error definitions
var (
	ErrEmptyFile         = errors.New("empty file")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrUnknownEncoding   = errors.New("unknown encoding")
)

// Load reads the file at path, choosing the reader by extension.
// CSV options are ignored for JSON and Parquet files.
func Load(path string, opts CSVOptions) (*table.Table, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".tsv", ".txt":
		if ext == ".tsv" && opts.Delimiter == 0 {
			opts.Delimiter = '\t'
		}
		return LoadCSV(path, opts)
	case ".json", ".jsonl", ".ndjson":
		return LoadJSON(path)
	case ".parquet", ".pq":
		return LoadParquet(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func toTable(path string, df *dataframe.DataFrame) (*table.Table, error) {
	if df == nil || len(df.Series) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	t, err := table.FromDataFrame(df)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return t, nil
}
