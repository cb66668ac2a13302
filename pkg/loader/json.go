package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/rocketlaunchr/dataframe-go/imports"

	"github.com/akhildatla/tabular/pkg/table"
)

// LoadJSON reads a JSON array of objects, or one object per line, into a table.
// Column types are inferred automatically.
func LoadJSON(path string) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	df, err := imports.LoadFromJSON(context.Background(), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return toTable(path, df)
}
