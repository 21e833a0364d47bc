// Package main provides the batch replay CLI: it loads a candle window
// and signal history, runs the position simulation candle by candle and
// writes the outcome as JSON, a Markdown report and CSV event logs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"futures-replay-lab/internal/domain"
	"futures-replay-lab/internal/marketdata"
	"futures-replay-lab/internal/observability"
	"futures-replay-lab/internal/replay"
	"futures-replay-lab/internal/reporting"
	"futures-replay-lab/internal/storage"
	chstore "futures-replay-lab/internal/storage/clickhouse"
	pgstore "futures-replay-lab/internal/storage/postgres"
)

func main() {
	// Input: CSV files or database window
	candlesCSV := flag.String("candles-csv", "", "Candle CSV export (openTime,open,high,low,close,volume,closeTime)")
	signalsCSV := flag.String("signals-csv", "", "Signal CSV export (symbol,signal,created_at)")
	symbol := flag.String("symbol", "XRPUSDT", "Trading pair symbol")
	start := flag.Int64("start", 0, "Window start, candle open time (ms)")
	end := flag.Int64("end", 0, "Window end, candle open time (ms)")

	// Storage
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (signals)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (candles)")

	// Simulation parameters
	leverage := flag.Int("leverage", domain.DefaultLeverage, "Position leverage multiplier")
	unitsPerSize := flag.Float64("units-per-size", domain.DefaultUnitsPerSize, "Quantity units per 1 size")
	size := flag.Float64("size", 1, "Order size per entry and per average-down")
	balance := flag.Float64("balance", 0, "Cross-margin balance backing the position (required)")
	trigger := flag.Float64("add-entry-trigger", 0, "Average-down when PnL%% <= -trigger")
	target := flag.Float64("take-profit", 0, "Close when PnL%% >= target")

	// Output
	outputJSON := flag.Bool("json", false, "Output full outcome as JSON")
	outputDir := flag.String("output-dir", "", "Write Markdown report and CSV logs to this directory")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

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

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Load inputs
	candles, signals, err := loadInputs(ctx, logger, *candlesCSV, *signalsCSV, *symbol, *start, *end, *postgresDSN, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("load inputs: %v", err)
	}
	logger.Printf("Loaded %d candles and %d signals for %s", len(candles), len(signals), *symbol)

	// Run batch replay
	observability.RecordRunStarted("batch")
	runStart := time.Now()

	outcome, err := replay.Run(ctx, cfg, candles, signals)
	if err != nil {
		logger.Fatalf("replay failed: %v", err)
	}

	observability.RecordRunCompleted("batch", time.Since(runStart).Seconds(), outcome.Liquidated)

	// Output result
	report := reporting.BuildReport(*symbol, outcome)

	if *outputDir != "" {
		if err := writeArtifacts(*outputDir, report, outcome); err != nil {
			logger.Fatalf("write artifacts: %v", err)
		}
		logger.Printf("Artifacts written to %s/", *outputDir)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(outcome, "", "  ")
		fmt.Println(string(output))
	} else {
		printReport(report)
	}
}

// loadInputs resolves the candle and signal sequences from CSV files or
// from the configured stores. CSV takes priority when both are given.
func loadInputs(
	ctx context.Context,
	logger *log.Logger,
	candlesCSV, signalsCSV, symbol string,
	start, end int64,
	postgresDSN, clickhouseDSN string,
) ([]*domain.Candle, []*domain.Signal, error) {
	if candlesCSV != "" {
		candles, err := marketdata.LoadCandlesFile(candlesCSV, symbol)
		if err != nil {
			return nil, nil, err
		}

		var signals []*domain.Signal
		if signalsCSV != "" {
			if signals, err = marketdata.LoadSignalsFile(signalsCSV); err != nil {
				return nil, nil, err
			}
		}
		return candles, signals, nil
	}

	if clickhouseDSN == "" || postgresDSN == "" {
		return nil, nil, fmt.Errorf("either --candles-csv or both --clickhouse-dsn and --postgres-dsn are required")
	}
	if end <= start {
		return nil, nil, fmt.Errorf("--start and --end must define a non-empty window")
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, err
	}
	defer pool.Close()

	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Close()

	var candleStore storage.CandleStore = chstore.NewCandleStore(conn)
	var signalStore storage.SignalStore = pgstore.NewSignalStore(pool)

	source := marketdata.NewSource(candleStore, signalStore)
	candles, err := source.FetchCandles(ctx, symbol, start, end)
	if err != nil {
		return nil, nil, err
	}
	signals, err := source.FetchSignals(ctx, symbol, start, end)
	if err != nil {
		return nil, nil, err
	}

	logger.Printf("Fetched window [%d, %d] from stores", start, end)
	return candles, signals, nil
}

// writeArtifacts writes the Markdown report and CSV event logs.
func writeArtifacts(dir string, report *reporting.RunReport, outcome *domain.RunOutcome) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	artifacts := map[string]string{
		"REPORT.md":        reporting.RenderMarkdown(report),
		"steps.csv":        reporting.RenderStepsCSV(outcome.Steps),
		"add_entries.csv":  reporting.RenderAddEntriesCSV(outcome.AddEntries),
		"take_profits.csv": reporting.RenderTakeProfitsCSV(outcome.TakeProfits),
	}

	for name, content := range artifacts {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// printReport outputs a human-readable run summary.
func printReport(r *reporting.RunReport) {
	fmt.Println()
	fmt.Println("=== Replay Result ===")
	fmt.Printf("Symbol:             %s\n", r.Symbol)
	fmt.Printf("Candles:            %d\n", r.CandleCount)
	fmt.Printf("Window:             %s .. %s\n",
		time.UnixMilli(r.StartTime).UTC().Format(time.RFC3339),
		time.UnixMilli(r.EndTime).UTC().Format(time.RFC3339))
	fmt.Println()

	fmt.Println("Trades:")
	fmt.Printf("  Take-Profits:     %d (long %d / short %d)\n", r.TakeProfitCount, r.LongTakeProfits, r.ShortTakeProfits)
	fmt.Printf("  Average-Downs:    %d\n", r.AddEntryCount)
	fmt.Printf("  Realized PnL:     %.6f\n", r.RealizedPnL)
	if r.TakeProfitCount > 0 {
		fmt.Printf("  PnL%% Mean:        %.4f\n", r.PnLPercentMean)
		fmt.Printf("  PnL%% Median:      %.4f\n", r.PnLPercentMedian)
		fmt.Printf("  PnL%% P10/P90:     %.4f / %.4f\n", r.PnLPercentP10, r.PnLPercentP90)
	}
	fmt.Println()

	fmt.Println("Outcome:")
	if r.Liquidated {
		fmt.Printf("  LIQUIDATED at %s\n", time.UnixMilli(r.LiquidatedAt).UTC().Format(time.RFC3339))
	} else if r.FinalState.HasPosition {
		fmt.Printf("  Open %s position: avg entry %.8f, quantity %.8f, average-downs %d\n",
			r.FinalState.Side, r.FinalState.AverageEntryPrice, r.FinalState.TotalQuantity, r.FinalState.AddEntryCount)
	} else {
		fmt.Println("  Flat")
	}
}
