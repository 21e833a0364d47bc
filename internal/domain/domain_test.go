package domain

import (
	"errors"
	"testing"
)

func TestMinuteBucket(t *testing.T) {
	cases := []struct {
		ts   int64
		want int64
	}{
		{0, 0},
		{59_999, 0},
		{60_000, 60_000},
		{60_001, 60_000},
		{1700000000123, 1699999980000},
	}

	for _, tc := range cases {
		if got := MinuteBucket(tc.ts); got != tc.want {
			t.Errorf("MinuteBucket(%d): expected %d, got %d", tc.ts, tc.want, got)
		}
	}
}

func TestSignalSide(t *testing.T) {
	buy := &Signal{Label: SignalLabelBuy}
	if buy.Side() != SideLong {
		t.Errorf("expected buy to open a long, got %s", buy.Side())
	}

	sell := &Signal{Label: SignalLabelSell}
	if sell.Side() != SideShort {
		t.Errorf("expected sell to open a short, got %s", sell.Side())
	}

	// Anything that is not "buy" opens a short
	other := &Signal{Label: "hold"}
	if other.Side() != SideShort {
		t.Errorf("expected unknown label to open a short, got %s", other.Side())
	}
}

func TestSimulationConfig_Validate(t *testing.T) {
	valid := SimulationConfig{
		Leverage:               30,
		UnitsPerSize:           10,
		Size:                   1,
		Balance:                1000,
		AddEntryTriggerPercent: 30,
		TakeProfitPercent:      10,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*SimulationConfig)
		want   error
	}{
		{"zero size", func(c *SimulationConfig) { c.Size = 0 }, ErrInvalidSize},
		{"negative balance", func(c *SimulationConfig) { c.Balance = -1 }, ErrInvalidBalance},
		{"zero leverage", func(c *SimulationConfig) { c.Leverage = 0 }, ErrInvalidLeverage},
		{"zero units", func(c *SimulationConfig) { c.UnitsPerSize = 0 }, ErrInvalidUnits},
		{"negative trigger", func(c *SimulationConfig) { c.AddEntryTriggerPercent = -1 }, ErrInvalidTrigger},
		{"negative target", func(c *SimulationConfig) { c.TakeProfitPercent = -1 }, ErrInvalidTarget},
	}

	for _, tc := range cases {
		cfg := valid
		tc.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestEntryQuantity(t *testing.T) {
	cfg := SimulationConfig{Size: 1.5, UnitsPerSize: 10}
	if got := cfg.EntryQuantity(); got != 15 {
		t.Errorf("expected 15, got %v", got)
	}
}
