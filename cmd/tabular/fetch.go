package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/akhildatla/tabular/pkg/market"
)

func parseDate(flag, s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: want YYYY-MM-DD, got %q", flag, s)
	}
	return t, nil
}

func newFetchCmd(a *app) *cobra.Command {
	var (
		tickers  []string
		from, to string
		returns  bool
		out      outputOptions
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download daily bars for tickers",
		Long: `Downloads adjusted daily bars for each ticker and writes one long table
with columns Date, Open, High, Low, Close, Volume, Ticker. With --returns the
bars are pivoted to one column of daily percent returns per ticker.

The API key comes from market.api_key in the config, TABULAR_MARKET_API_KEY
or POLYGON_API_KEY.

Example:
  tabular fetch --tickers AAPL,MSFT --from 2022-01-01 --to 2022-06-30 --out bars.parquet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDate("from", from)
			if err != nil {
				return err
			}
			end, err := parseDate("to", to)
			if err != nil {
				return err
			}
			if end.Before(start) {
				return fmt.Errorf("--to %s is before --from %s", to, from)
			}

			mc := a.cfg.Market
			client := market.NewClient(market.Config{
				APIKey:          mc.APIKey,
				BaseURL:         mc.BaseURL,
				Timeout:         mc.Timeout,
				MaxRetries:      mc.MaxRetries,
				InitialInterval: mc.InitialInterval,
				Workers:         mc.Workers,
			})
			defer client.Close()

			bars, err := client.FetchAll(cmd.Context(), tickers, start, end)
			if err != nil {
				return err
			}
			a.logger.Info().Int("rows", bars.NRows()).Strs("tickers", tickers).Msg("fetched bars")
			if returns {
				if bars, err = market.Returns().Run(cmd.Context(), bars); err != nil {
					return err
				}
			}

			if out.maxRows == 0 {
				out.maxRows = a.cfg.Exec.MaxRows
			}
			return writeTable(cmd.Context(), cmd.OutOrStdout(), bars, out)
		},
	}
	cmd.Flags().StringSliceVarP(&tickers, "tickers", "t", nil, "comma-separated ticker symbols")
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().BoolVar(&returns, "returns", false, "output daily percent returns per ticker")
	_ = cmd.MarkFlagRequired("tickers")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	addOutputFlags(cmd, &out)
	return cmd
}
