// Package main provides the one-shot benchmark computation entry point.
// Pulls sold-comp market data for the stale benchmark candidates and
// stores fresh market medians.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cardarb/internal/benchmark"
	"cardarb/internal/config"
	"cardarb/internal/fx"
	"cardarb/internal/marketdata"
	"cardarb/internal/observability"
	"cardarb/internal/storage"
	"cardarb/internal/storage/clickhouse"
	"cardarb/internal/storage/migrations"
	"cardarb/internal/storage/postgres"
)

func main() {
	cfg := config.Load()

	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (empty disables comp archiving)")
	force := flag.Bool("force", false, "Recompute benchmarks regardless of freshness")
	maxPerRun := flag.Int("max-per-run", cfg.BenchmarkMaxPerRun, "Benchmark computation cap per run")
	flag.Parse()

	logger := log.New(os.Stdout, "[benchmark] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn or POSTGRES_DSN is required")
	}
	if cfg.EbayAppID == "" {
		logger.Fatal("EBAY_APP_ID is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := postgres.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	var sink storage.CompSampleStore
	if *clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to clickhouse: %v", err)
		}
		defer chConn.Close()
		sink = clickhouse.NewCompSampleStore(chConn)
	}

	engine := benchmark.New(
		newMarketSource(cfg, logger),
		postgres.NewIdentityStore(pool),
		postgres.NewListingStore(pool),
		postgres.NewBenchmarkStore(pool),
		benchmark.WithMinAge(cfg.BenchmarkMinAge),
		benchmark.WithMaxPerRun(*maxPerRun),
		benchmark.WithMaxResults(cfg.BenchmarkMaxResults),
		benchmark.WithPriceBand(cfg.BenchmarkPriceFloor, cfg.BenchmarkPriceCeiling),
		benchmark.WithSampleSink(sink),
		benchmark.WithLogger(logger),
	)

	result, err := engine.Compute(ctx, benchmark.Options{Force: *force})
	if err != nil {
		logger.Fatalf("Benchmark run failed: %v", err)
	}
	observability.RecordBenchmarkRun(result.Stored, result.Filtered, result.Skipped,
		len(result.Errors), result.RateLimited, result.Duration.Seconds())

	fmt.Printf("candidates=%d stored=%d filtered=%d skipped=%d in %v\n",
		result.Candidates, result.Stored, result.Filtered, result.Skipped, result.Duration)
	if result.RateLimited {
		fmt.Println("run ended early: market data source rate limited")
	}
	for _, e := range result.Errors {
		fmt.Printf("  - %s\n", e)
	}
}

// newMarketSource builds the eBay sold-comps client with a cached
// currency converter.
func newMarketSource(cfg *config.Config, logger *log.Logger) marketdata.Source {
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
	return marketdata.NewEbayClient(cfg.EbayAppID, cfg.TargetCurrency, opts...)
}
