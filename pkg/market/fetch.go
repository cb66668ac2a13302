package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/akhildatla/tabular/pkg/table"
)

// FetchAll fetches every ticker concurrently, at most Workers at a time,
// and returns one long table sorted by Date then Ticker. Tickers without
// bars are skipped; if none has bars the error is ErrNoResults.
func (c *Client) FetchAll(ctx context.Context, tickers []string, from, to time.Time) (*table.Table, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: no tickers", ErrNoResults)
	}

	results := make([]*table.Table, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, ticker := range tickers {
		g.Go(func() error {
			t, err := c.Bars(gctx, ticker, from, to)
			if errors.Is(err, ErrNoResults) {
				zerolog.Ctx(ctx).Warn().Str("ticker", ticker).Msg("no bars in range")
				return nil
			}
			results[i] = t
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var tables []*table.Table
	for _, t := range results {
		if t != nil {
			tables = append(tables, t)
		}
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: %d tickers", ErrNoResults, len(tickers))
	}

	combined, err := table.Concat(tables...)
	if err != nil {
		return nil, err
	}
	return combined.Sort(table.Asc("Date"), table.Asc("Ticker"))
}
