package market

import (
	"github.com/akhildatla/tabular/pkg/ops"
	"github.com/akhildatla/tabular/pkg/pipeline"
	"github.com/akhildatla/tabular/pkg/table"
)

// Returns is the pipeline that turns long bars (Date, Ticker, Close) into
// one column of daily percent returns per ticker, indexed by Date.
func Returns() *pipeline.Pipeline {
	return pipeline.New("returns",
		pipeline.Sort(table.Asc("Date"), table.Asc("Ticker")),
		pipeline.Pivot(ops.PivotOptions{Index: []string{"Date"}, Columns: "Ticker", Values: "Close"}),
		pipeline.PctChange(),
	)
}
