// Package main provides the HTTP server: market data and signal APIs,
// an on-demand simulation endpoint and a websocket that streams a live
// replay step by step.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"futures-replay-lab/internal/domain"
	"futures-replay-lab/internal/marketdata"
	"futures-replay-lab/internal/observability"
	"futures-replay-lab/internal/replay"
	"futures-replay-lab/internal/reporting"
	"futures-replay-lab/internal/storage"
	chstore "futures-replay-lab/internal/storage/clickhouse"
	"futures-replay-lab/internal/storage/memory"
	"futures-replay-lab/internal/storage/migrations"
	pgstore "futures-replay-lab/internal/storage/postgres"
)

// maxRangeRows caps a single API page.
const maxRangeRows = 5000

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	candleStore storage.CandleStore
	signalStore storage.SignalStore
	source      *marketdata.Source
	logger      *log.Logger
	upgrader    websocket.Upgrader

	// defaultTickInterval drives websocket playback when the client
	// does not ask for a specific cadence.
	defaultTickInterval time.Duration
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", ":8080", "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of databases")
	migrate := flag.Bool("migrate", false, "Run schema migrations on startup")
	tickInterval := flag.Duration("tick-interval", 100*time.Millisecond, "Default websocket playback cadence")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	candleStore, signalStore, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, *migrate)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	server := &Server{
		candleStore: candleStore,
		signalStore: signalStore,
		source:      marketdata.NewSource(candleStore, signalStore),
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The UI is served from another origin during development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		defaultTickInterval: *tickInterval,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", server.handleHealthz)
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/api/ohlcv", server.handleOHLCV)
	mux.HandleFunc("/api/signals", server.handleSignals)
	mux.HandleFunc("/api/simulate", server.handleSimulate)
	mux.HandleFunc("/ws/live", server.handleLiveWS)

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: mux,
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
	}()

	logger.Printf("Listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates candle and signal stores, in-memory or database
// backed, and optionally applies migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory, migrate bool) (storage.CandleStore, storage.SignalStore, func(), error) {
	if useMemory {
		return memory.NewCandleStore(), memory.NewSignalStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	cleanup := func() {
		conn.Close()
		pool.Close()
	}

	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
	}

	return chstore.NewCandleStore(conn), pgstore.NewSignalStore(pool), cleanup, nil
}

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleOHLCV returns candles for a symbol and time range.
func (s *Server) handleOHLCV(w http.ResponseWriter, r *http.Request) {
	symbol, start, end, err := rangeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	candles, err := s.candleStore.GetByTimeRange(r.Context(), symbol, start, end)
	if err != nil {
		s.logger.Printf("ohlcv query failed: %v", err)
		writeError(w, http.StatusInternalServerError, errors.New("query failed"))
		return
	}
	if len(candles) > maxRangeRows {
		candles = candles[:maxRangeRows]
	}

	writeJSON(w, map[string]any{
		"symbol":  symbol,
		"candles": candles,
	})
}

// handleSignals returns signals for a symbol and time range.
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	symbol, start, end, err := rangeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	signals, err := s.signalStore.GetByTimeRange(r.Context(), symbol, start, end)
	if err != nil {
		s.logger.Printf("signals query failed: %v", err)
		writeError(w, http.StatusInternalServerError, errors.New("query failed"))
		return
	}
	if len(signals) > maxRangeRows {
		signals = signals[:maxRangeRows]
	}

	writeJSON(w, map[string]any{
		"symbol":  symbol,
		"signals": signals,
	})
}

// simulateRequest is the POST /api/simulate body.
type simulateRequest struct {
	Symbol                 string  `json:"symbol"`
	Start                  int64   `json:"start"`
	End                    int64   `json:"end"`
	Leverage               int     `json:"leverage"`
	UnitsPerSize           float64 `json:"unitsPerSize"`
	Size                   float64 `json:"size"`
	Balance                float64 `json:"balance"`
	AddEntryTriggerPercent float64 `json:"addEntryTriggerPercent"`
	TakeProfitPercent      float64 `json:"takeProfitPercent"`
}

// config maps the request onto a simulation config, filling defaults.
func (req *simulateRequest) config() domain.SimulationConfig {
	cfg := domain.SimulationConfig{
		Leverage:               req.Leverage,
		UnitsPerSize:           req.UnitsPerSize,
		Size:                   req.Size,
		Balance:                req.Balance,
		AddEntryTriggerPercent: req.AddEntryTriggerPercent,
		TakeProfitPercent:      req.TakeProfitPercent,
	}
	if cfg.Leverage == 0 {
		cfg.Leverage = domain.DefaultLeverage
	}
	if cfg.UnitsPerSize == 0 {
		cfg.UnitsPerSize = domain.DefaultUnitsPerSize
	}
	if cfg.Size == 0 {
		cfg.Size = 1
	}
	return cfg
}

// simulateResponse is the POST /api/simulate reply.
type simulateResponse struct {
	Outcome *domain.RunOutcome   `json:"outcome"`
	Report  *reporting.RunReport `json:"report"`
}

// handleSimulate runs a batch replay over a stored window.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
		return
	}

	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Symbol == "" || req.End <= req.Start {
		writeError(w, http.StatusBadRequest, errors.New("symbol, start and end are required"))
		return
	}

	cfg := req.config()
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	candles, signals, err := s.loadWindow(r.Context(), req.Symbol, req.Start, req.End)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, marketdata.ErrEmptyCandleWindow) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}

	observability.RecordRunStarted("api")
	runStart := time.Now()

	outcome, err := replay.Run(r.Context(), cfg, candles, signals)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	observability.RecordRunCompleted("api", time.Since(runStart).Seconds(), outcome.Liquidated)
	observability.DefaultMetrics.LastCompletedRun.Set(float64(time.Now().Unix()))

	writeJSON(w, simulateResponse{
		Outcome: outcome,
		Report:  reporting.BuildReport(req.Symbol, outcome),
	})
}

// wsMessage is one websocket playback frame.
type wsMessage struct {
	Type       string                   `json:"type"` // step, addEntry, takeProfit, done, error
	Step       *domain.StepResult       `json:"step,omitempty"`
	AddEntry   *domain.AddEntryRecord   `json:"addEntry,omitempty"`
	TakeProfit *domain.TakeProfitRecord `json:"takeProfit,omitempty"`
	Outcome    *domain.RunOutcome       `json:"outcome,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// handleLiveWS streams a replay over a websocket, one candle per tick.
// Query parameters mirror the /api/simulate body plus tickMs.
func (s *Server) handleLiveWS(w http.ResponseWriter, r *http.Request) {
	req, tick, err := liveParams(r, s.defaultTickInterval)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cfg := req.config()
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	candles, signals, err := s.loadWindow(r.Context(), req.Symbol, req.Start, req.End)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, marketdata.ErrEmptyCandleWindow) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}

	run, err := replay.NewLiveRun(cfg, candles, signals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	observability.DefaultMetrics.WSClients.Inc()
	defer observability.DefaultMetrics.WSClients.Dec()

	observability.RecordRunStarted("ws")
	runStart := time.Now()

	// Stop the run when the client goes away.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				run.Stop()
				cancel()
				return
			}
		}
	}()

	s.streamRun(ctx, conn, run, tick)

	outcome := run.Outcome()
	observability.RecordRunCompleted("ws", time.Since(runStart).Seconds(), outcome.Liquidated)
}

// streamRun ticks the run on a timer and writes one frame per step plus
// one frame per recorded event.
func (s *Server) streamRun(ctx context.Context, conn *websocket.Conn, run *replay.LiveRun, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for !run.Done() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		result, done, err := run.Tick(ctx)
		if err != nil {
			if !errors.Is(err, replay.ErrRunStopped) && !errors.Is(err, context.Canceled) {
				conn.WriteJSON(wsMessage{Type: "error", Error: err.Error()})
			}
			return
		}
		observability.RecordStep()

		if err := conn.WriteJSON(wsMessage{Type: "step", Step: &result}); err != nil {
			return
		}

		outcome := run.Outcome()
		if n := len(outcome.AddEntries); n > 0 && outcome.AddEntries[n-1].Time == result.Time {
			observability.RecordAddEntry()
			if err := conn.WriteJSON(wsMessage{Type: "addEntry", AddEntry: &outcome.AddEntries[n-1]}); err != nil {
				return
			}
		}
		if n := len(outcome.TakeProfits); n > 0 && outcome.TakeProfits[n-1].Time == result.Time {
			observability.RecordTakeProfit()
			if err := conn.WriteJSON(wsMessage{Type: "takeProfit", TakeProfit: &outcome.TakeProfits[n-1]}); err != nil {
				return
			}
		}

		if done {
			break
		}
	}

	conn.WriteJSON(wsMessage{Type: "done", Outcome: run.Outcome()})
}

// loadWindow resolves the candle and signal sequences for a run.
func (s *Server) loadWindow(ctx context.Context, symbol string, start, end int64) ([]*domain.Candle, []*domain.Signal, error) {
	candles, err := s.source.FetchCandles(ctx, symbol, start, end)
	if err != nil {
		return nil, nil, err
	}
	signals, err := s.source.FetchSignals(ctx, symbol, start, end)
	if err != nil {
		return nil, nil, err
	}
	return candles, signals, nil
}

// rangeParams parses symbol/start/end query parameters.
func rangeParams(r *http.Request) (string, int64, int64, error) {
	q := r.URL.Query()

	symbol := q.Get("symbol")
	if symbol == "" {
		return "", 0, 0, errors.New("symbol is required")
	}

	start, err := strconv.ParseInt(q.Get("start"), 10, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("parse start: %w", err)
	}
	end, err := strconv.ParseInt(q.Get("end"), 10, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("parse end: %w", err)
	}
	if end <= start {
		return "", 0, 0, errors.New("end must be after start")
	}

	return symbol, start, end, nil
}

// liveParams parses the /ws/live query string.
func liveParams(r *http.Request, defaultTick time.Duration) (*simulateRequest, time.Duration, error) {
	symbol, start, end, err := rangeParams(r)
	if err != nil {
		return nil, 0, err
	}

	q := r.URL.Query()
	req := &simulateRequest{Symbol: symbol, Start: start, End: end}

	floatParam := func(name string, dst *float64) error {
		if v := q.Get(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("parse %s: %w", name, err)
			}
			*dst = f
		}
		return nil
	}

	if v := q.Get("leverage"); v != "" {
		if req.Leverage, err = strconv.Atoi(v); err != nil {
			return nil, 0, fmt.Errorf("parse leverage: %w", err)
		}
	}
	for name, dst := range map[string]*float64{
		"unitsPerSize":           &req.UnitsPerSize,
		"size":                   &req.Size,
		"balance":                &req.Balance,
		"addEntryTriggerPercent": &req.AddEntryTriggerPercent,
		"takeProfitPercent":      &req.TakeProfitPercent,
	} {
		if err := floatParam(name, dst); err != nil {
			return nil, 0, err
		}
	}

	tick := defaultTick
	if v := q.Get("tickMs"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, 0, errors.New("tickMs must be a positive integer")
		}
		tick = time.Duration(ms) * time.Millisecond
	}

	return req, tick, nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; nothing recoverable.
		return
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
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
