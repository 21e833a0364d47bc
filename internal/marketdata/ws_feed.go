package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"futures-replay-lab/internal/domain"
	"futures-replay-lab/internal/observability"
)

// DefaultBinanceWSBaseURL is the public combined-stream endpoint.
const DefaultBinanceWSBaseURL = "wss://stream.binance.com:9443"

// KlineFeedConfig configures the live kline stream.
type KlineFeedConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is the timeout for reading messages. The exchange
	// pings well inside this window on a healthy connection.
	ReadTimeout time.Duration
}

// DefaultKlineFeedConfig returns default stream configuration.
func DefaultKlineFeedConfig() KlineFeedConfig {
	return KlineFeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       90 * time.Second,
	}
}

// KlineFeed streams closed 1-minute candles for one symbol over a
// websocket kline subscription. Candles are emitted strictly in
// ascending open-time order; duplicates and retractions from reconnects
// are dropped, so a live replay only ever sees monotonically appended
// candles.
type KlineFeed struct {
	baseURL string
	symbol  string
	config  KlineFeedConfig
}

// NewKlineFeed creates a feed for a symbol. An empty baseURL uses the
// public endpoint.
func NewKlineFeed(baseURL, symbol string, config *KlineFeedConfig) *KlineFeed {
	cfg := DefaultKlineFeedConfig()
	if config != nil {
		cfg = *config
	}
	if baseURL == "" {
		baseURL = DefaultBinanceWSBaseURL
	}
	return &KlineFeed{baseURL: baseURL, symbol: symbol, config: cfg}
}

// Subscribe opens the stream and returns a channel of closed candles.
// The channel is closed when the context is cancelled. Connection drops
// are retried with exponential backoff.
func (f *KlineFeed) Subscribe(ctx context.Context) <-chan *domain.Candle {
	out := make(chan *domain.Candle)

	go func() {
		defer close(out)

		var lastOpenTime int64
		delay := f.config.ReconnectDelay

		for {
			if ctx.Err() != nil {
				return
			}

			err := f.stream(ctx, out, &lastOpenTime)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				log.Printf("[kline-feed] stream %s dropped: %v, reconnecting in %v", f.symbol, err, delay)
			}
			observability.RecordFeedReconnect()

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}

			delay *= 2
			if delay > f.config.MaxReconnectDelay {
				delay = f.config.MaxReconnectDelay
			}
		}
	}()

	return out
}

// stream runs one websocket session until the connection drops or the
// context is cancelled.
func (f *KlineFeed) stream(ctx context.Context, out chan<- *domain.Candle, lastOpenTime *int64) error {
	endpoint := fmt.Sprintf("%s/ws/%s@kline_1m", f.baseURL, strings.ToLower(f.symbol))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()

	// Unblock ReadMessage on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		candle, closed, err := ParseKlineEvent(message)
		if err != nil {
			log.Printf("[kline-feed] skipping malformed message: %v", err)
			continue
		}
		if !closed {
			continue // only completed candles enter the run
		}
		if candle.OpenTime <= *lastOpenTime {
			continue // duplicate or out-of-order after reconnect
		}

		select {
		case out <- candle:
			*lastOpenTime = candle.OpenTime
			observability.RecordFeedCandle()
		case <-ctx.Done():
			return nil
		}
	}
}

// klineEvent mirrors the exchange kline stream payload.
type klineEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Kline     struct {
		OpenTime  int64  `json:"t"`
		CloseTime int64  `json:"T"`
		Symbol    string `json:"s"`
		Open      string `json:"o"`
		Close     string `json:"c"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Volume    string `json:"v"`
		Closed    bool   `json:"x"`
	} `json:"k"`
}

// ParseKlineEvent decodes one kline stream message. closed reports
// whether the candle's minute has completed.
func ParseKlineEvent(message []byte) (*domain.Candle, bool, error) {
	var ev klineEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		return nil, false, fmt.Errorf("decode kline event: %w", err)
	}
	if ev.EventType != "kline" {
		return nil, false, fmt.Errorf("unexpected event type %q", ev.EventType)
	}

	c := &domain.Candle{
		Symbol:    ev.Kline.Symbol,
		OpenTime:  ev.Kline.OpenTime,
		CloseTime: ev.Kline.CloseTime,
	}

	var err error
	if c.Open, err = parsePrice(ev.Kline.Open); err != nil {
		return nil, false, fmt.Errorf("parse open: %w", err)
	}
	if c.High, err = parsePrice(ev.Kline.High); err != nil {
		return nil, false, fmt.Errorf("parse high: %w", err)
	}
	if c.Low, err = parsePrice(ev.Kline.Low); err != nil {
		return nil, false, fmt.Errorf("parse low: %w", err)
	}
	if c.Close, err = parsePrice(ev.Kline.Close); err != nil {
		return nil, false, fmt.Errorf("parse close: %w", err)
	}
	if c.Volume, err = parsePrice(ev.Kline.Volume); err != nil {
		return nil, false, fmt.Errorf("parse volume: %w", err)
	}

	return c, ev.Kline.Closed, nil
}

// parsePrice decodes a string-encoded decimal from the stream payload.
func parsePrice(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
