// Package main serves completed simulation runs over HTTP and streams
// ledger events over a websocket while a run executes. The API is
// read-only apart from POST /api/runs, which executes one simulation over
// the stored blueprints and broadcasts its events to connected clients.
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
	"sync"
	"syscall"
	"time"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/observability"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/reporting"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/simulation"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
	chstore "github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage/clickhouse"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage/memory"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage/migrations"
	pgstore "github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage/postgres"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/stream"
)

// Server bundles the stores, the stream hub and the run trigger.
type Server struct {
	blueprintStore storage.BlueprintStore
	positionStore  storage.PositionStore
	eventStore     storage.EventStore
	fillStore      storage.FillStore
	summaryStore   storage.RunSummaryStore
	aggregateStore storage.RunAggregateStore

	hub       *stream.Hub
	generator *reporting.Generator
	logger    *log.Logger

	mu      sync.Mutex
	running bool
}

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage seeded with demo blueprints")
	flag.Parse()

	logger := log.New(os.Stderr, "[server] ", log.LstdFlags)
	ctx := context.Background()

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn and --clickhouse-dsn are required when not using --use-memory")
		os.Exit(1)
	}

	srv := &Server{
		hub:    stream.NewHub(),
		logger: logger,
	}

	if *useMemory {
		srv.memoryStores()
		if err := seedDemoBlueprints(ctx, srv.blueprintStore); err != nil {
			fmt.Fprintf(os.Stderr, "Error seeding demo blueprints: %v\n", err)
			os.Exit(1)
		}
		logger.Println("using in-memory storage with demo blueprints")
	} else {
		cleanup, err := srv.databaseStores(ctx, *postgresDSN, *clickhouseDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to databases: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
	}
	srv.generator = reporting.NewGenerator(srv.summaryStore, srv.aggregateStore)

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket connections outlive any fixed bound
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-sigCtx.Done()
		logger.Println("shutting down")
		srv.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Error serving: %v\n", err)
		os.Exit(1)
	}
}

// memoryStores wires in-memory stores for demo mode.
func (s *Server) memoryStores() {
	s.blueprintStore = memory.NewBlueprintStore()
	s.positionStore = memory.NewPositionStore()
	s.eventStore = memory.NewEventStore()
	s.fillStore = memory.NewFillStore()
	s.summaryStore = memory.NewSummaryStore()
	s.aggregateStore = memory.NewAggregateStore()
}

// databaseStores connects to both databases, applies migrations and wires
// the stores.
func (s *Server) databaseStores(ctx context.Context, postgresDSN, clickhouseDSN string) (func(), error) {
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	s.blueprintStore = pgstore.NewBlueprintStore(pool)
	s.positionStore = pgstore.NewPositionStore(pool)
	s.eventStore = chstore.NewEventStore(conn)
	s.fillStore = chstore.NewFillStore(conn)
	s.summaryStore = pgstore.NewSummaryStore(pool)
	s.aggregateStore = pgstore.NewAggregateStore(pool)

	return func() {
		conn.Close()
		pool.Close()
	}, nil
}

// routes builds the HTTP mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /ws", s.handleWS)

	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("POST /api/runs", s.handleStartRun)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/runs/{id}/positions", s.handleGetPositions)
	mux.HandleFunc("GET /api/runs/{id}/events", s.handleGetEvents)
	mux.HandleFunc("GET /api/runs/{id}/fills", s.handleGetFills)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	observability.UpdateStreamSubscribers(s.hub.SubscriberCount() + 1)
	stream.ServeWS(s.hub)(w, r)
	observability.UpdateStreamSubscribers(s.hub.SubscriberCount())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.summaryStore.GetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]*runSummaryJSON, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, summaryToJSON(sum))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.generator.Generate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reportToJSON(report))
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.positionStore.GetByRunID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]*positionJSON, 0, len(positions))
	for _, p := range positions {
		out = append(out, positionToJSON(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.eventStore.GetByRunID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]*stream.EventPayload, 0, len(events))
	for _, e := range events {
		out = append(out, eventToJSON(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetFills(w http.ResponseWriter, r *http.Request) {
	fills, err := s.fillStore.GetByRunID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]*fillJSON, 0, len(fills))
	for _, f := range fills {
		out = append(out, fillToJSON(f))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStartRun executes one simulation over the stored blueprints,
// streaming its events to websocket subscribers. One run at a time.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse request: %w", err))
		return
	}

	cfg, err := req.toConfig()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, errors.New("a run is already executing"))
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	runner := simulation.NewRunner(simulation.RunnerOptions{
		BlueprintStore: s.blueprintStore,
		PositionStore:  s.positionStore,
		EventStore:     s.eventStore,
		FillStore:      s.fillStore,
		SummaryStore:   s.summaryStore,
		AggregateStore: s.aggregateStore,
		Sink:           s.hub,
		Label:          req.Label,
	})

	started := time.Now()
	out, err := runner.Run(r.Context(), *cfg, nil)
	elapsed := time.Since(started).Seconds()

	switch {
	case errors.Is(err, simulation.ErrAuditBlocked):
		observability.RecordRun("blocked", elapsed, out.Result.Summary)
		observability.RecordAudit(out.Audit.P0Count, out.Audit.P1Count, out.Audit.P2Count)
		s.logger.Printf("run %s blocked by %d P0 findings", out.RunID, out.Audit.P0Count)
		writeJSON(w, http.StatusUnprocessableEntity, runResponseFrom(out, true))
	case err != nil:
		observability.RecordRun("failed", elapsed, nil)
		writeError(w, http.StatusInternalServerError, err)
	default:
		observability.RecordRun("ok", elapsed, out.Result.Summary)
		observability.RecordAudit(out.Audit.P0Count, out.Audit.P1Count, out.Audit.P2Count)
		s.logger.Printf("run %s finished in %.2fs", out.RunID, elapsed)
		writeJSON(w, http.StatusCreated, runResponseFrom(out, false))
	}
}

// runRequest is the body of POST /api/runs. Zero values fall back to a
// conservative default config.
type runRequest struct {
	Label               string  `json:"label"`
	Preset              string  `json:"preset"`
	Balance             float64 `json:"balance"`
	PercentPerTrade     float64 `json:"percent_per_trade"`
	Sizing              string  `json:"sizing"`
	MaxOpen             int     `json:"max_open"`
	MaxExposure         float64 `json:"max_exposure"`
	ProfitResetMultiple float64 `json:"profit_reset_multiple"`
	MaxHoldMs           int64   `json:"max_hold_ms"`
}

func (req *runRequest) toConfig() (*domain.SimConfig, error) {
	if req.Preset == "" {
		req.Preset = domain.CostPresetRealistic
	}
	if req.Balance == 0 {
		req.Balance = 100
	}
	if req.PercentPerTrade == 0 {
		req.PercentPerTrade = 0.1
	}
	if req.Sizing == "" {
		req.Sizing = string(domain.SizingFixed)
	}
	if req.MaxOpen == 0 {
		req.MaxOpen = 10
	}
	if req.MaxExposure == 0 {
		req.MaxExposure = 0.8
	}

	cost := domain.CostPreset(req.Preset)
	if cost == nil {
		return nil, fmt.Errorf("unknown cost preset %q", req.Preset)
	}
	cfg := &domain.SimConfig{
		Cost: *cost,
		Allocation: domain.AllocationConfig{
			StartingBalanceSOL: req.Balance,
			PercentPerTrade:    req.PercentPerTrade,
			SizingMode:         domain.SizingMode(req.Sizing),
			MaxOpenPositions:   req.MaxOpen,
			MaxExposure:        req.MaxExposure,
		},
		MaxHold: domain.MaxHoldConfig{MaxHoldMs: req.MaxHoldMs},
	}
	if req.ProfitResetMultiple > 0 {
		cfg.ProfitReset = domain.ProfitResetConfig{Enabled: true, Multiple: req.ProfitResetMultiple}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
