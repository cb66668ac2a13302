package loader

import (
	"context"
	"fmt"
	"os"

	"github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/xitongsys/parquet-go-source/local"

	"github.com/akhildatla/tabular/pkg/table"
)

// LoadParquet reads a Parquet file into a table.
func LoadParquet(path string) (*table.Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fr.Close()

	df, err := imports.LoadFromParquet(context.Background(), fr)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return toTable(path, df)
}
