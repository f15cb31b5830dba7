// Package candle fetches OHLCV candle history from the market-data provider.
package candle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	platformhttp "tradebot/internal/platform/http"
	"tradebot/models"
)

// Source retrieves an ordered candle series for one symbol and timeframe.
// Implementations perform no retries; retry policy belongs to the caller.
type Source interface {
	Fetch(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
}

// FetchError reports a failure to retrieve or decode provider data.
type FetchError struct {
	Symbol    string
	Timeframe string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch candles %s %s: %v", e.Symbol, e.Timeframe, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// BinanceSource fetches klines from the Binance REST API.
type BinanceSource struct {
	baseURL string
	client  *platformhttp.Client
	logger  zerolog.Logger
}

// NewBinanceSource creates a candle source backed by the Binance klines endpoint.
func NewBinanceSource(baseURL string, client *platformhttp.Client) *BinanceSource {
	return &BinanceSource{
		baseURL: baseURL,
		client:  client,
		logger:  log.With().Str("component", "binance_source").Logger(),
	}
}

// Fetch retrieves up to limit klines for symbol/timeframe, returning them
// deduplicated and sorted ascending by open time.
func (s *BinanceSource) Fetch(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", timeframe)
	q.Set("limit", strconv.Itoa(limit))
	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", s.baseURL, q.Encode())

	s.logger.Debug().Str("symbol", symbol).Str("timeframe", timeframe).Int("limit", limit).Msg("fetching klines")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Symbol: symbol, Timeframe: timeframe, Err: err}
	}

	resp, err := s.client.DoRequest(ctx, req)
	if err != nil {
		return nil, &FetchError{Symbol: symbol, Timeframe: timeframe, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Symbol: symbol, Timeframe: timeframe, Err: fmt.Errorf("reading response body: %w", err)}
	}

	candles, err := parseKlines(body)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("malformed klines payload")
		return nil, &FetchError{Symbol: symbol, Timeframe: timeframe, Err: err}
	}

	s.logger.Debug().Int("count", len(candles)).Str("symbol", symbol).Msg("fetched candles")
	return candles, nil
}

// parseKlines decodes the Binance fixed-width kline rows:
// [open-time, open, high, low, close, volume, close-time, ...].
// Prices and volume arrive as decimal strings, the open time in epoch ms.
func parseKlines(body []byte) ([]models.Candle, error) {
	var rows [][]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty kline response")
	}

	seen := make(map[int64]bool, len(rows))
	candles := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline row %d has %d fields, want at least 6", i, len(row))
		}
		openTime, ok := row[0].(float64)
		if !ok {
			return nil, fmt.Errorf("kline row %d: open time is not numeric", i)
		}
		ts := int64(openTime)
		if seen[ts] {
			continue
		}
		seen[ts] = true

		c := models.Candle{Timestamp: time.UnixMilli(ts).UTC()}
		fields := []struct {
			dst  *float64
			name string
			pos  int
		}{
			{&c.Open, "open", 1},
			{&c.High, "high", 2},
			{&c.Low, "low", 3},
			{&c.Close, "close", 4},
			{&c.Volume, "volume", 5},
		}
		for _, f := range fields {
			v, err := parseDecimal(row[f.pos])
			if err != nil {
				return nil, fmt.Errorf("kline row %d: %s: %w", i, f.name, err)
			}
			*f.dst = v
		}
		candles = append(candles, c)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

func parseDecimal(v any) (float64, error) {
	switch x := v.(type) {
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %q: %w", x, err)
		}
		return f, nil
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("unexpected field type %T", v)
	}
}
