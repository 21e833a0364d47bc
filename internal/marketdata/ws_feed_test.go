package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func klineEventJSON(openTime int64, close string, closed bool) string {
	closedStr := "false"
	if closed {
		closedStr = "true"
	}
	open := strconv.FormatInt(openTime, 10)
	end := strconv.FormatInt(openTime+59_999, 10)
	return `{"e":"kline","E":1700000000100,"s":"XRPUSDT","k":{` +
		`"t":` + open + `,"T":` + end + `,"s":"XRPUSDT",` +
		`"o":"0.6100","c":"` + close + `","h":"0.6200","l":"0.6050","v":"1000.5","x":` + closedStr + `}}`
}

func TestParseKlineEvent(t *testing.T) {
	candle, closed, err := ParseKlineEvent([]byte(klineEventJSON(1700000000000, "0.6140", true)))
	if err != nil {
		t.Fatalf("ParseKlineEvent: %v", err)
	}

	if !closed {
		t.Error("expected closed candle")
	}
	if candle.Symbol != "XRPUSDT" {
		t.Errorf("expected symbol XRPUSDT, got %q", candle.Symbol)
	}
	if candle.OpenTime != 1700000000000 {
		t.Errorf("expected openTime 1700000000000, got %d", candle.OpenTime)
	}
	if candle.Close != 0.6140 {
		t.Errorf("expected close 0.6140, got %v", candle.Close)
	}
}

func TestParseKlineEvent_OpenCandle(t *testing.T) {
	_, closed, err := ParseKlineEvent([]byte(klineEventJSON(1700000000000, "0.6140", false)))
	if err != nil {
		t.Fatalf("ParseKlineEvent: %v", err)
	}
	if closed {
		t.Error("expected open candle to report closed=false")
	}
}

func TestParseKlineEvent_WrongEventType(t *testing.T) {
	payload := `{"e":"aggTrade","k":{}}`

	if _, _, err := ParseKlineEvent([]byte(payload)); err == nil {
		t.Fatal("expected error for non-kline event")
	}
}

func TestKlineFeed_StreamsClosedCandlesInOrder(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/ws/xrpusdt@kline_1m") {
			t.Errorf("unexpected stream path %s", r.URL.Path)
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		messages := []string{
			klineEventJSON(1700000000000, "0.6140", false), // still open, dropped
			klineEventJSON(1700000000000, "0.6140", true),
			klineEventJSON(1700000000000, "0.6140", true), // duplicate, dropped
			klineEventJSON(1700000060000, "0.6155", true),
		}
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}

		// Keep the session open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	feed := NewKlineFeed(wsURL, "XRPUSDT", nil)
	out := feed.Subscribe(ctx)

	first := <-out
	if first == nil || first.OpenTime != 1700000000000 {
		t.Fatalf("expected first closed candle at 1700000000000, got %+v", first)
	}

	second := <-out
	if second == nil || second.OpenTime != 1700000060000 {
		t.Fatalf("expected second candle at 1700000060000, got %+v", second)
	}
	if second.Close != 0.6155 {
		t.Errorf("expected close 0.6155, got %v", second.Close)
	}

	// No third candle: the duplicate and the open candle were dropped.
	select {
	case c := <-out:
		if c != nil {
			t.Errorf("unexpected extra candle %+v", c)
		}
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
}
