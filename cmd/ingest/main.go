// Package main provides the ingestion CLI: it backfills 1-minute
// candles from the Binance REST API and imports candle and signal CSV
// exports into the configured stores.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"futures-replay-lab/internal/domain"
	"futures-replay-lab/internal/marketdata"
	"futures-replay-lab/internal/observability"
	"futures-replay-lab/internal/storage"
	chstore "futures-replay-lab/internal/storage/clickhouse"
	"futures-replay-lab/internal/storage/migrations"
	pgstore "futures-replay-lab/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	candleStoreKind := flag.String("candle-store", "clickhouse", "Store for candles: clickhouse or postgres")
	migrate := flag.Bool("migrate", false, "Run schema migrations before ingesting")

	// CSV import
	candlesCSV := flag.String("candles-csv", "", "Candle CSV export to import")
	signalsCSV := flag.String("signals-csv", "", "Signal CSV export to import")

	// Binance backfill
	backfill := flag.Bool("backfill", false, "Backfill candles from the Binance REST API")
	symbol := flag.String("symbol", "XRPUSDT", "Trading pair symbol")
	start := flag.Int64("start", 0, "Backfill start, open time (ms); 0 resumes after the latest stored candle")
	end := flag.Int64("end", 0, "Backfill end, open time (ms); 0 means now")
	binanceURL := flag.String("binance-url", "", "Binance REST base URL (default public endpoint)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags)

	if *candlesCSV == "" && *signalsCSV == "" && !*backfill && !*migrate {
		logger.Fatal("Nothing to do: use --candles-csv, --signals-csv, --backfill or --migrate")
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

	// Connect stores
	candleStore, signalStore, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *candleStoreKind, *migrate)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	// CSV imports
	if *candlesCSV != "" {
		if err := importCandles(ctx, logger, candleStore, *candlesCSV, *symbol); err != nil {
			observability.RecordIngestionError("csv")
			logger.Fatalf("import candles: %v", err)
		}
	}
	if *signalsCSV != "" {
		if err := importSignals(ctx, logger, signalStore, *signalsCSV); err != nil {
			observability.RecordIngestionError("csv")
			logger.Fatalf("import signals: %v", err)
		}
	}

	// Binance backfill
	if *backfill {
		if err := runBackfill(ctx, logger, candleStore, *binanceURL, *symbol, *start, *end); err != nil {
			observability.RecordIngestionError("binance")
			logger.Fatalf("backfill: %v", err)
		}
	}

	observability.DefaultMetrics.LastSuccessfulIngestion.Set(float64(time.Now().Unix()))
	logger.Println("Done")
}

// createStores connects the candle and signal stores and optionally
// applies migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN, candleStoreKind string, migrate bool) (storage.CandleStore, storage.SignalStore, func(), error) {
	if postgresDSN == "" {
		return nil, nil, nil, errRequiredFlag("--postgres-dsn")
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() { pool.Close() }

	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
	}

	signalStore := pgstore.NewSignalStore(pool)

	var candleStore storage.CandleStore
	switch candleStoreKind {
	case "postgres":
		candleStore = pgstore.NewCandleStore(pool)
	case "clickhouse":
		if clickhouseDSN == "" {
			cleanup()
			return nil, nil, nil, errRequiredFlag("--clickhouse-dsn")
		}
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		prev := cleanup
		cleanup = func() { conn.Close(); prev() }

		if migrate {
			if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
				cleanup()
				return nil, nil, nil, err
			}
		}
		candleStore = chstore.NewCandleStore(conn)
	default:
		cleanup()
		return nil, nil, nil, errInvalidStoreKind(candleStoreKind)
	}

	return candleStore, signalStore, cleanup, nil
}

// importCandles loads a candle CSV export into the candle store.
func importCandles(ctx context.Context, logger *log.Logger, store storage.CandleStore, path, symbol string) error {
	candles, err := marketdata.LoadCandlesFile(path, symbol)
	if err != nil {
		return err
	}
	if err := store.InsertBulk(ctx, candles); err != nil {
		return err
	}
	observability.RecordCandlesIngested(len(candles))
	logger.Printf("Imported %d candles from %s", len(candles), path)
	return nil
}

// importSignals loads a signal CSV export into the signal store.
func importSignals(ctx context.Context, logger *log.Logger, store storage.SignalStore, path string) error {
	signals, err := marketdata.LoadSignalsFile(path)
	if err != nil {
		return err
	}
	if err := store.InsertBulk(ctx, signals); err != nil {
		return err
	}
	observability.RecordSignalsIngested(len(signals))
	logger.Printf("Imported %d signals from %s", len(signals), path)
	return nil
}

// runBackfill pages candles from the Binance REST API into the store.
func runBackfill(ctx context.Context, logger *log.Logger, store storage.CandleStore, baseURL, symbol string, start, end int64) error {
	if start == 0 {
		latest, err := store.GetLatestOpenTime(ctx, symbol)
		switch {
		case err == nil:
			start = latest + 60_000
		case isNotFound(err):
			return errRequiredFlag("--start (no stored candles to resume from)")
		default:
			return err
		}
	}
	if end == 0 {
		end = time.Now().UnixMilli()
	}

	logger.Printf("Backfilling %s [%d, %d) from Binance", symbol, start, end)

	client := marketdata.NewBinanceClient(baseURL)
	total := 0
	err := client.Backfill(ctx, symbol, start, end, func(page []*domain.Candle) error {
		if err := store.InsertBulk(ctx, page); err != nil {
			return err
		}
		total += len(page)
		observability.RecordCandlesIngested(len(page))
		logger.Printf("Stored %d candles (total %d), cursor at %d", len(page), total, page[len(page)-1].CloseTime+1)
		return nil
	})
	if err != nil {
		return err
	}

	logger.Printf("Backfill complete: %d candles", total)
	return nil
}

// isNotFound reports whether the error is the store's not-found sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

// errRequiredFlag reports a missing required flag.
func errRequiredFlag(name string) error {
	return fmt.Errorf("%s is required", name)
}

// errInvalidStoreKind reports an unsupported --candle-store value.
func errInvalidStoreKind(kind string) error {
	return fmt.Errorf("--candle-store must be clickhouse or postgres, got %q", kind)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
