package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rocketlaunchr/dataframe-go/imports"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/akhildatla/tabular/pkg/table"
)

// DefaultTimeLayout parses the columns named in CSVOptions.TimeColumns.
const DefaultTimeLayout = time.DateOnly

// CSVOptions controls how a delimited file is decoded.
type CSVOptions struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune

	// Encoding is "utf8" (default) or "latin1". Latin-1 input is
	// transcoded to UTF-8 before parsing.
	Encoding string

	// NilValue is the cell text read as null. Empty cells are always null.
	NilValue string

	// TimeColumns are parsed with TimeLayout instead of being inferred.
	TimeColumns []string
	TimeLayout  string
}

// LoadCSV reads a CSV file into a table.
// - First row is header (column names)
// - Column types are inferred (int64, float64, string)
// - Empty values become nil
func LoadCSV(path string, opts CSVOptions) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	dec, err := decoder(opts.Encoding)
	if err != nil {
		return nil, err
	}
	if dec != nil {
		if data, err = dec.Bytes(data); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	}

	df, err := imports.LoadFromCSV(context.Background(), bytes.NewReader(data), csvLoadOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return toTable(path, df)
}

func csvLoadOptions(opts CSVOptions) imports.CSVLoadOptions {
	nilValue := opts.NilValue
	lo := imports.CSVLoadOptions{
		Comma:          opts.Delimiter,
		InferDataTypes: true,
		NilValue:       &nilValue,
	}
	if lo.Comma == 0 {
		lo.Comma = ','
	}

	if len(opts.TimeColumns) > 0 {
		layout := opts.TimeLayout
		if layout == "" {
			layout = DefaultTimeLayout
		}
		lo.DictateDataType = make(map[string]interface{}, len(opts.TimeColumns))
		for _, name := range opts.TimeColumns {
			lo.DictateDataType[name] = imports.Converter{
				ConcreteType: time.Time{},
				ConverterFunc: func(in interface{}) (interface{}, error) {
					return time.Parse(layout, in.(string))
				},
			}
		}
	}
	return lo
}

// decoder returns nil for UTF-8 input.
func decoder(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "-", "")) {
	case "", "utf8":
		return nil, nil
	case "latin1", "iso88591":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "cp1252", "windows1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}
