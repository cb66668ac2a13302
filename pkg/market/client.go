// Package market fetches daily aggregate bars from a Polygon-style REST
// API and returns them as tables.
package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/UltimateTournament/backoff/v4"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/akhildatla/tabular/pkg/table"
)

var (
	ErrStatus    = errors.New("unexpected response status")
	ErrNoResults = errors.New("no results")
	ErrNoAPIKey  = errors.New("API key not configured")
)

// DefaultBaseURL is the public aggregates API.
const DefaultBaseURL = "https://api.polygon.io"

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// MaxRetries bounds retries of rate-limited and server errors.
	MaxRetries uint64
	// InitialInterval is the first retry delay. It doubles per attempt.
	InitialInterval time.Duration
	// Workers bounds concurrent requests in FetchAll.
	Workers int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:          apiKey,
		BaseURL:         DefaultBaseURL,
		Timeout:         30 * time.Second,
		MaxRetries:      5,
		InitialInterval: 500 * time.Millisecond,
		Workers:         4,
	}
}

// Client requests aggregate bars.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a client. Zero fields of cfg take DefaultConfig
// values.
func NewClient(cfg Config) *Client {
	def := DefaultConfig(cfg.APIKey)
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
	}
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

type aggsResponse struct {
	Ticker       string `json:"ticker"`
	Status       string `json:"status"`
	ResultsCount int    `json:"resultsCount"`
	Results      []bar  `json:"results"`
	Error        string `json:"error"`
}

type bar struct {
	Open         float64 `json:"o"`
	High         float64 `json:"h"`
	Low          float64 `json:"l"`
	Close        float64 `json:"c"`
	Volume       float64 `json:"v"`
	VWAP         float64 `json:"vw"`
	Transactions int64   `json:"n"`
	Timestamp    int64   `json:"t"`
}

// Bars returns the daily bars of ticker between from and to, inclusive,
// as a table with columns Date, Open, High, Low, Close, Volume, Ticker.
func (c *Client) Bars(ctx context.Context, ticker string, from, to time.Time) (*table.Table, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	endpoint := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s",
		c.cfg.BaseURL, url.PathEscape(ticker), from.Format(time.DateOnly), to.Format(time.DateOnly))
	query := url.Values{
		"adjusted": {"true"},
		"sort":     {"asc"},
		"limit":    {"5000"},
		"apiKey":   {c.cfg.APIKey},
	}
	endpoint += "?" + query.Encode()

	logger := zerolog.Ctx(ctx).With().Str("ticker", ticker).Logger()
	start := time.Now()

	var resp aggsResponse
	op := func() error {
		var err error
		resp, err = c.get(ctx, endpoint)
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialInterval
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("wait", wait).Msg("retrying bars request")
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.MaxRetries), ctx), notify); err != nil {
		return nil, fmt.Errorf("bars %s: %w", ticker, err)
	}

	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("bars %s: %w", ticker, ErrNoResults)
	}
	logger.Debug().Int("bars", len(resp.Results)).Dur("took", time.Since(start)).Msg("fetched bars")
	return barsTable(ticker, resp.Results)
}

// get performs one request. Rate limits and server errors are returned
// as retryable; everything else is permanent.
func (c *Client) get(ctx context.Context, endpoint string) (aggsResponse, error) {
	var out aggsResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return out, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return out, backoff.Permanent(ctx.Err())
		}
		return out, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return out, err
	}

	if res.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: %d %s", ErrStatus, res.StatusCode, snippet(body))
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
			return out, err
		}
		return out, backoff.Permanent(err)
	}

	if err := json.Unmarshal(body, &out); err != nil {
		return out, backoff.Permanent(fmt.Errorf("decode bars: %w", err))
	}
	if strings.EqualFold(out.Status, "ERROR") {
		return out, backoff.Permanent(fmt.Errorf("%w: %s", ErrStatus, out.Error))
	}
	return out, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func barsTable(ticker string, bars []bar) (*table.Table, error) {
	n := len(bars)
	dates := make([]any, n)
	open := make([]any, n)
	high := make([]any, n)
	low := make([]any, n)
	closes := make([]any, n)
	volume := make([]any, n)
	tickers := make([]any, n)
	for i, b := range bars {
		dates[i] = time.UnixMilli(b.Timestamp).UTC()
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		closes[i] = b.Close
		volume[i] = b.Volume
		tickers[i] = ticker
	}

	fields := []struct {
		name string
		kind table.Kind
		vals []any
	}{
		{"Date", table.KindTime, dates},
		{"Open", table.KindFloat, open},
		{"High", table.KindFloat, high},
		{"Low", table.KindFloat, low},
		{"Close", table.KindFloat, closes},
		{"Volume", table.KindFloat, volume},
		{"Ticker", table.KindString, tickers},
	}
	cols := make([]*table.Column, len(fields))
	for i, s := range fields {
		c, err := table.NewColumn(s.name, s.kind, s.vals)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	return table.New(cols...)
}
