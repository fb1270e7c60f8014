// Package main provides the continuous arbitrage pipeline entry point.
// Runs scan, benchmark, and score cycles on an interval and serves
// health and Prometheus metrics endpoints.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cardarb/internal/benchmark"
	"cardarb/internal/config"
	"cardarb/internal/feeds"
	"cardarb/internal/fx"
	"cardarb/internal/marketdata"
	"cardarb/internal/observability"
	"cardarb/internal/orchestrator"
	"cardarb/internal/reconcile"
	"cardarb/internal/scoring"
	"cardarb/internal/storage"
	"cardarb/internal/storage/clickhouse"
	"cardarb/internal/storage/memory"
	"cardarb/internal/storage/migrations"
	"cardarb/internal/storage/postgres"
)

// appStores holds the storage backends behind one pipeline instance.
type appStores struct {
	identities    storage.IdentityStore
	listings      storage.ListingStore
	benchmarks    storage.BenchmarkStore
	opportunities storage.OpportunityStore
	samples       storage.CompSampleStore
}

func main() {
	cfg := config.Load()

	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (empty disables comp archiving)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	skipBenchmarks := flag.Bool("skip-benchmarks", false, "Run scan and score stages only")
	cycleInterval := flag.Duration("cycle-interval", cfg.CycleInterval, "Pipeline cycle interval")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Health/metrics HTTP address")
	flag.Parse()

	logger := log.New(os.Stdout, "[pipeline] ", log.LstdFlags)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if !*skipBenchmarks && cfg.EbayAppID == "" {
		logger.Fatal("EBAY_APP_ID is required (use --skip-benchmarks to run without market data)")
	}

	storefronts, err := cfg.Storefronts()
	if err != nil {
		logger.Fatalf("Failed to load storefronts: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	orch := orchestrator.New(orchestrator.Options{
		Reconciler: reconcile.New(
			feeds.NewShopifyClient(),
			stores.identities,
			stores.listings,
			reconcile.WithMaxPages(cfg.ScanMaxPages),
			reconcile.WithRetry(cfg.ScanMaxRetries, cfg.ScanRetryDelay),
			reconcile.WithLogger(logger),
		),
		Engine: newEngine(cfg, stores, logger, *skipBenchmarks),
		Scorer: scoring.New(
			stores.identities,
			stores.listings,
			stores.benchmarks,
			stores.opportunities,
			scoring.WithThreshold(cfg.ScoreThreshold),
			scoring.WithListingMaxAge(cfg.ListingMaxAge),
			scoring.WithBenchmarkMaxAge(cfg.BenchmarkMaxAge),
			scoring.WithStaleAfter(cfg.OpportunityStaleTime),
			scoring.WithLogger(logger),
		),
		Storefronts:    storefronts,
		SkipBenchmarks: *skipBenchmarks,
		StageRetries:   cfg.StageRetries,
		StageDelay:     cfg.StageDelay,
		Logger:         logger,
	})

	srv := newStatusServer(*metricsAddr, logger)
	go srv.serve()

	logger.Printf("Starting pipeline: %d storefronts, cycle interval %v", len(storefronts), *cycleInterval)

	// Run immediately, then on the ticker.
	runCycle(ctx, orch, stores, srv, logger)

	ticker := time.NewTicker(*cycleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Println("Shutdown complete")
			return
		case <-ticker.C:
			runCycle(ctx, orch, stores, srv, logger)
		}
	}
}

// runCycle executes one orchestrator cycle and records its outcome.
func runCycle(ctx context.Context, orch *orchestrator.Orchestrator, stores *appStores, srv *statusServer, logger *log.Logger) {
	result, err := orch.RunCycle(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Printf("Cycle failed: %v", err)
		observability.RecordCycle("error", 0)
		srv.recordCycle(false)
		return
	}

	for _, rec := range result.Reconciled {
		observability.RecordReconcilePass(rec.Storefront, rec.Matched, rec.Created,
			rec.Reactivated, rec.Removed, rec.Filtered, rec.PagesFailed,
			rec.Duration.Seconds())
	}
	if b := result.Benchmarks; b != nil {
		observability.RecordBenchmarkRun(b.Stored, b.Filtered, b.Skipped,
			len(b.Errors), b.RateLimited, b.Duration.Seconds())
	}
	if s := result.Scoring; s != nil {
		observability.RecordScorePass(s.Checked, s.Found,
			s.DeactivatedStale, s.DeactivatedListing, s.Duration.Seconds())
	}
	if active, aerr := stores.opportunities.GetActive(ctx); aerr == nil {
		observability.UpdateActiveOpportunities(len(active))
	}

	status := "success"
	if len(result.Errors) > 0 {
		status = "partial"
	}
	observability.RecordCycle(status, result.Duration.Seconds())
	srv.recordCycle(true)

	logger.Printf("Cycle %s finished (%s) in %v: %d storefronts reconciled, %d errors",
		result.RunID, status, result.Duration, len(result.Reconciled), len(result.Errors))
	for _, e := range result.Errors {
		logger.Printf("  - %s", e)
	}
}

// newEngine builds the benchmark engine, nil when benchmarks are skipped.
func newEngine(cfg *config.Config, stores *appStores, logger *log.Logger, skip bool) *benchmark.Engine {
	if skip {
		return nil
	}

	opts := []marketdata.EbayOption{
		marketdata.WithLogger(logger),
	}
	if cfg.EbayEndpoint != "" {
		opts = append(opts, marketdata.WithEndpoint(cfg.EbayEndpoint))
	}
	if cfg.FXEndpoint != "" {
		converter := fx.NewCachedConverter(
			fx.NewHTTPConverter(cfg.FXEndpoint, nil),
			fx.WithTTL(cfg.FXCacheTTL),
		)
		opts = append(opts, marketdata.WithConverter(converter))
	}
	source := marketdata.NewEbayClient(cfg.EbayAppID, cfg.TargetCurrency, opts...)

	return benchmark.New(
		source,
		stores.identities,
		stores.listings,
		stores.benchmarks,
		benchmark.WithMinAge(cfg.BenchmarkMinAge),
		benchmark.WithMaxPerRun(cfg.BenchmarkMaxPerRun),
		benchmark.WithMaxResults(cfg.BenchmarkMaxResults),
		benchmark.WithPriceBand(cfg.BenchmarkPriceFloor, cfg.BenchmarkPriceCeiling),
		benchmark.WithSampleSink(stores.samples),
		benchmark.WithLogger(logger),
	)
}

// createStores creates the storage backends: either all in-memory, or
// PostgreSQL plus an optional ClickHouse comp archive.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*appStores, func(), error) {
	if useMemory {
		listings := memory.NewListingStore()
		stores := &appStores{
			identities:    memory.NewIdentityStore(),
			listings:      listings,
			benchmarks:    memory.NewBenchmarkStore(),
			opportunities: memory.NewOpportunityStore(listings),
			samples:       memory.NewCompSampleStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	stores := &appStores{
		identities:    postgres.NewIdentityStore(pool),
		listings:      postgres.NewListingStore(pool),
		benchmarks:    postgres.NewBenchmarkStore(pool),
		opportunities: postgres.NewOpportunityStore(pool),
	}
	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		stores.samples = clickhouse.NewCompSampleStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}

// statusServer serves /health, /status and /metrics.
type statusServer struct {
	addr   string
	logger *log.Logger

	mu         sync.Mutex
	started    time.Time
	cycles     int
	lastCycle  time.Time
	lastStatus bool
}

func newStatusServer(addr string, logger *log.Logger) *statusServer {
	return &statusServer{
		addr:    addr,
		logger:  logger,
		started: time.Now(),
	}
}

func (s *statusServer) recordCycle(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
	s.lastCycle = time.Now()
	s.lastStatus = ok
}

func (s *statusServer) serve() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := map[string]any{
			"uptime_seconds": int(time.Since(s.started).Seconds()),
			"cycles":         s.cycles,
			"last_cycle":     s.lastCycle,
			"last_cycle_ok":  s.lastStatus,
		}
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})
	mux.Handle("/metrics", observability.Handler())

	s.logger.Printf("HTTP server listening on %s", s.addr)
	if err := http.ListenAndServe(s.addr, mux); err != nil {
		s.logger.Printf("HTTP server error: %v", err)
	}
}
