// Command tabular runs reshape and aggregate pipelines over tabular data.
//
// Usage:
//
//	tabular run program.tab --frame sales=sales.csv
//	tabular run program.tab --frame sales=sales.csv --format csv --out out.csv
//	tabular repl --frame sales=sales.csv
//	tabular fetch --tickers AAPL,MSFT --from 2022-01-01 --to 2022-12-31 --out bars.parquet
//	tabular ask "total quantity per category" --frame sales=sales.csv
//	tabular serve --frame sales=sales.csv
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version info set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
