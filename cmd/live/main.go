// Package main provides the live playback CLI: the same simulation as
// the batch replay, driven one candle per timer tick so the run can be
// watched and stopped while it progresses.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"futures-replay-lab/internal/domain"
	"futures-replay-lab/internal/marketdata"
	"futures-replay-lab/internal/observability"
	"futures-replay-lab/internal/replay"
	"futures-replay-lab/internal/reporting"
)

func main() {
	// Input
	candlesCSV := flag.String("candles-csv", "", "Candle CSV export (required)")
	signalsCSV := flag.String("signals-csv", "", "Signal CSV export")
	symbol := flag.String("symbol", "XRPUSDT", "Trading pair symbol")

	// Playback
	tickInterval := flag.Duration("tick-interval", 200*time.Millisecond, "Delay between candle steps")
	quiet := flag.Bool("quiet", false, "Log only events, not every step")

	// Simulation parameters
	leverage := flag.Int("leverage", domain.DefaultLeverage, "Position leverage multiplier")
	unitsPerSize := flag.Float64("units-per-size", domain.DefaultUnitsPerSize, "Quantity units per 1 size")
	size := flag.Float64("size", 1, "Order size per entry and per average-down")
	balance := flag.Float64("balance", 0, "Cross-margin balance backing the position (required)")
	trigger := flag.Float64("add-entry-trigger", 0, "Average-down when PnL%% <= -trigger")
	target := flag.Float64("take-profit", 0, "Close when PnL%% >= target")

	// Output
	outputJSON := flag.Bool("json", false, "Output full outcome as JSON at the end")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[live] ", log.LstdFlags)

	if *candlesCSV == "" {
		logger.Fatal("--candles-csv is required")
	}

	cfg := domain.SimulationConfig{
		Leverage:               *leverage,
		UnitsPerSize:           *unitsPerSize,
		Size:                   *size,
		Balance:                *balance,
		AddEntryTriggerPercent: *trigger,
		TakeProfitPercent:      *target,
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	candles, err := marketdata.LoadCandlesFile(*candlesCSV, *symbol)
	if err != nil {
		logger.Fatalf("load candles: %v", err)
	}

	var signals []*domain.Signal
	if *signalsCSV != "" {
		if signals, err = marketdata.LoadSignalsFile(*signalsCSV); err != nil {
			logger.Fatalf("load signals: %v", err)
		}
	}
	logger.Printf("Loaded %d candles and %d signals for %s", len(candles), len(signals), *symbol)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run, err := replay.NewLiveRun(cfg, candles, signals)
	if err != nil {
		logger.Fatalf("prepare run: %v", err)
	}

	// Handle shutdown signals. The run is stopped at a tick boundary so
	// the history recorded so far stays intact.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, stopping playback...", sig)
		run.Stop()
		cancel()
	}()

	observability.RecordRunStarted("live")
	runStart := time.Now()

	ticker := time.NewTicker(*tickInterval)
	defer ticker.Stop()

playback:
	for !run.Done() {
		select {
		case <-ctx.Done():
			break playback
		case <-ticker.C:
		}

		result, done, err := run.Tick(ctx)
		if err != nil {
			if err == replay.ErrRunStopped || err == context.Canceled {
				break playback
			}
			logger.Fatalf("tick failed: %v", err)
		}
		observability.RecordStep()

		if !*quiet {
			logStep(logger, result)
		}
		logEvents(logger, run.Outcome(), result.Time)

		if done {
			break
		}
	}

	outcome := run.Outcome()
	observability.RecordRunCompleted("live", time.Since(runStart).Seconds(), outcome.Liquidated)

	if outcome.Liquidated {
		logger.Printf("LIQUIDATED at %s after %d steps",
			time.UnixMilli(outcome.LiquidatedAt).UTC().Format(time.RFC3339), len(outcome.Steps))
	} else {
		logger.Printf("Playback finished: %d steps, %d take-profits, %d average-downs",
			len(outcome.Steps), len(outcome.TakeProfits), len(outcome.AddEntries))
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(outcome, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Print(reporting.RenderMarkdown(reporting.BuildReport(*symbol, outcome)))
	}
}

// logStep prints one step line.
func logStep(logger *log.Logger, r domain.StepResult) {
	if r.Position.HasPosition {
		logger.Printf("%s price=%.8f %s pnl=%.4f (%.2f%%) liq=%.8f",
			time.UnixMilli(r.Time).UTC().Format("15:04"),
			r.Price, r.Position.Side, r.PnL, r.PnLPercent, r.LiquidationPrice)
		return
	}
	logger.Printf("%s price=%.8f flat",
		time.UnixMilli(r.Time).UTC().Format("15:04"), r.Price)
}

// logEvents prints the events recorded on the current step, if any.
func logEvents(logger *log.Logger, outcome *domain.RunOutcome, stepTime int64) {
	if n := len(outcome.AddEntries); n > 0 && outcome.AddEntries[n-1].Time == stepTime {
		e := outcome.AddEntries[n-1]
		observability.RecordAddEntry()
		logger.Printf("AVERAGE-DOWN #%d at %.8f: qty +%.4f, avg %.8f, pnl%% %.2f -> %.2f",
			e.Order, e.Price, e.QuantityAdded, e.AverageEntryPriceAfter, e.PnLPercentBefore, e.PnLPercentAfter)
	}
	if n := len(outcome.TakeProfits); n > 0 && outcome.TakeProfits[n-1].Time == stepTime {
		tp := outcome.TakeProfits[n-1]
		observability.RecordTakeProfit()
		logger.Printf("TAKE-PROFIT at %.8f: closed %.4f %s, pnl %.6f (%.2f%%)",
			tp.Price, tp.QuantityClosed, tp.Side, tp.PnL, tp.PnLPercent)
	}
}
