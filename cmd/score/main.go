// Package main provides the one-shot opportunity scoring entry point.
// Compares fresh active listings against their market benchmarks and
// maintains the active opportunity set.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cardarb/internal/config"
	"cardarb/internal/observability"
	"cardarb/internal/scoring"
	"cardarb/internal/storage/migrations"
	"cardarb/internal/storage/postgres"
)

func main() {
	cfg := config.Load()

	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	flag.Parse()

	logger := log.New(os.Stdout, "[score] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn or POSTGRES_DSN is required")
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

	opportunities := postgres.NewOpportunityStore(pool)
	scorer := scoring.New(
		postgres.NewIdentityStore(pool),
		postgres.NewListingStore(pool),
		postgres.NewBenchmarkStore(pool),
		opportunities,
		scoring.WithThreshold(cfg.ScoreThreshold),
		scoring.WithListingMaxAge(cfg.ListingMaxAge),
		scoring.WithBenchmarkMaxAge(cfg.BenchmarkMaxAge),
		scoring.WithStaleAfter(cfg.OpportunityStaleTime),
		scoring.WithLogger(logger),
	)

	result, err := scorer.Score(ctx, scoring.Options{})
	if err != nil {
		logger.Fatalf("Scoring run failed: %v", err)
	}
	observability.RecordScorePass(result.Checked, result.Found,
		result.DeactivatedStale, result.DeactivatedListing, result.Duration.Seconds())

	if active, err := opportunities.GetActive(ctx); err == nil {
		observability.UpdateActiveOpportunities(len(active))
	}

	fmt.Printf("checked=%d found=%d created=%d refreshed=%d no_benchmark=%d retired_stale=%d retired_listing=%d in %v\n",
		result.Checked, result.Found, result.Created, result.Refreshed,
		result.NoBenchmark, result.DeactivatedStale, result.DeactivatedListing, result.Duration)
	for _, e := range result.Errors {
		fmt.Printf("  - %s\n", e)
	}
}
