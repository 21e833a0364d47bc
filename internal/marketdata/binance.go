package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"futures-replay-lab/internal/domain"
)

// Binance REST defaults.
const (
	DefaultBinanceBaseURL = "https://api.binance.com"
	KlineInterval1m       = "1m"

	// maxKlinesPerRequest is the Binance per-request cap.
	maxKlinesPerRequest = 1000

	// backfillPause spaces paged requests to stay under rate limits.
	backfillPause = 200 * time.Millisecond
)

// BinanceClient downloads klines from the Binance REST API.
type BinanceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBinanceClient creates a client. An empty baseURL uses the public
// endpoint; tests point it at a local server.
func NewBinanceClient(baseURL string) *BinanceClient {
	if baseURL == "" {
		baseURL = DefaultBinanceBaseURL
	}
	return &BinanceClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Klines fetches up to limit klines starting at startTime.
func (c *BinanceClient) Klines(ctx context.Context, symbol, interval string, startTime int64, limit int) ([]*domain.Candle, error) {
	if limit <= 0 || limit > maxKlinesPerRequest {
		limit = maxKlinesPerRequest
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("startTime", strconv.FormatInt(startTime, 10))
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build klines request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch klines: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read klines response: %w", err)
	}

	return ParseKlines(body, symbol)
}

// Backfill pages through klines from start to end (exclusive) and hands
// each page to sink. Paging follows the last candle's close time, the
// same cursor the exchange uses.
func (c *BinanceClient) Backfill(ctx context.Context, symbol string, start, end int64, sink func([]*domain.Candle) error) error {
	current := start
	for current < end {
		candles, err := c.Klines(ctx, symbol, KlineInterval1m, current, maxKlinesPerRequest)
		if err != nil {
			return err
		}
		if len(candles) == 0 {
			return nil
		}

		if err := sink(candles); err != nil {
			return err
		}

		current = candles[len(candles)-1].CloseTime + 1

		select {
		case <-time.After(backfillPause):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// ParseKlines decodes the Binance kline array-of-arrays payload:
// [openTime, open, high, low, close, volume, closeTime, ...]. Numeric
// prices arrive as strings.
func ParseKlines(data []byte, symbol string) ([]*domain.Candle, error) {
	var raw [][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode klines payload: %w", err)
	}

	candles := make([]*domain.Candle, 0, len(raw))
	for i, row := range raw {
		if len(row) < 7 {
			return nil, fmt.Errorf("kline row %d: expected at least 7 fields, got %d", i, len(row))
		}

		c := &domain.Candle{Symbol: symbol}
		var err error
		if err = json.Unmarshal(row[0], &c.OpenTime); err != nil {
			return nil, fmt.Errorf("kline row %d: parse open time: %w", i, err)
		}
		if c.Open, err = klinePrice(row[1]); err != nil {
			return nil, fmt.Errorf("kline row %d: parse open: %w", i, err)
		}
		if c.High, err = klinePrice(row[2]); err != nil {
			return nil, fmt.Errorf("kline row %d: parse high: %w", i, err)
		}
		if c.Low, err = klinePrice(row[3]); err != nil {
			return nil, fmt.Errorf("kline row %d: parse low: %w", i, err)
		}
		if c.Close, err = klinePrice(row[4]); err != nil {
			return nil, fmt.Errorf("kline row %d: parse close: %w", i, err)
		}
		if c.Volume, err = klinePrice(row[5]); err != nil {
			return nil, fmt.Errorf("kline row %d: parse volume: %w", i, err)
		}
		if err = json.Unmarshal(row[6], &c.CloseTime); err != nil {
			return nil, fmt.Errorf("kline row %d: parse close time: %w", i, err)
		}

		candles = append(candles, c)
	}

	return candles, nil
}

// klinePrice decodes a JSON string-encoded decimal into a float.
func klinePrice(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}
