package marketdata

import (
	"strings"
	"testing"

	"futures-replay-lab/internal/domain"
)

const candleCSV = `openTime,open,high,low,close,volume,closeTime
1700000000000,0.6123,0.6150,0.6100,0.6140,125000.5,1700000059999
1700000060000,0.6140,0.6160,0.6130,0.6155,98000.25,1700000119999
`

func TestReadCandlesCSV(t *testing.T) {
	candles, err := ReadCandlesCSV(strings.NewReader(candleCSV), "XRPUSDT")
	if err != nil {
		t.Fatalf("ReadCandlesCSV: %v", err)
	}

	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}

	c := candles[0]
	if c.Symbol != "XRPUSDT" {
		t.Errorf("expected symbol attached, got %q", c.Symbol)
	}
	if c.OpenTime != 1700000000000 {
		t.Errorf("expected openTime 1700000000000, got %d", c.OpenTime)
	}
	if c.Close != 0.6140 {
		t.Errorf("expected close 0.6140, got %v", c.Close)
	}
	if c.CloseTime != 1700000059999 {
		t.Errorf("expected closeTime 1700000059999, got %d", c.CloseTime)
	}
}

func TestReadCandlesCSV_MalformedRow(t *testing.T) {
	bad := "openTime,open,high,low,close,volume,closeTime\nnot-a-number,1,1,1,1,1,1\n"

	if _, err := ReadCandlesCSV(strings.NewReader(bad), "XRPUSDT"); err == nil {
		t.Fatal("expected parse error for malformed openTime")
	}
}

func TestReadCandlesCSV_Empty(t *testing.T) {
	if _, err := ReadCandlesCSV(strings.NewReader(""), "XRPUSDT"); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestReadSignalsCSV(t *testing.T) {
	input := `symbol,signal,created_at
XRPUSDT,BUY,2023-11-14 22:13:20+00:00
XRPUSDT,sell,2023-11-14T22:14:20Z
`

	signals, err := ReadSignalsCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadSignalsCSV: %v", err)
	}

	if len(signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(signals))
	}

	// Labels are lowercased on import
	if signals[0].Label != domain.SignalLabelBuy {
		t.Errorf("expected lowercased buy label, got %q", signals[0].Label)
	}
	if signals[0].CreatedAt != 1700000000000 {
		t.Errorf("expected created_at 1700000000000, got %d", signals[0].CreatedAt)
	}
	if signals[1].Label != domain.SignalLabelSell {
		t.Errorf("expected sell label, got %q", signals[1].Label)
	}
	if signals[1].CreatedAt != 1700000060000 {
		t.Errorf("expected created_at 1700000060000, got %d", signals[1].CreatedAt)
	}
}

func TestReadSignalsCSV_UnsupportedTimestamp(t *testing.T) {
	input := "symbol,signal,created_at\nXRPUSDT,buy,14/11/2023\n"

	if _, err := ReadSignalsCSV(strings.NewReader(input)); err == nil {
		t.Fatal("expected error for unsupported timestamp format")
	}
}
