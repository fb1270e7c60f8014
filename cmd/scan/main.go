// Package main provides the one-shot storefront scan entry point.
// Fetches every configured storefront feed and reconciles the listing
// inventory against it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cardarb/internal/config"
	"cardarb/internal/feeds"
	"cardarb/internal/observability"
	"cardarb/internal/reconcile"
	"cardarb/internal/storage/migrations"
	"cardarb/internal/storage/postgres"
)

func main() {
	cfg := config.Load()

	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	only := flag.String("storefront", "", "Scan a single storefront by slug")
	flag.Parse()

	logger := log.New(os.Stdout, "[scan] ", log.LstdFlags)

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

	storefronts, err := cfg.Storefronts()
	if err != nil {
		logger.Fatalf("Failed to load storefronts: %v", err)
	}
	storefronts = filterStorefronts(storefronts, *only)
	if len(storefronts) == 0 {
		logger.Fatalf("No storefront matches %q", *only)
	}

	reconciler := reconcile.New(
		feeds.NewShopifyClient(),
		postgres.NewIdentityStore(pool),
		postgres.NewListingStore(pool),
		reconcile.WithMaxPages(cfg.ScanMaxPages),
		reconcile.WithRetry(cfg.ScanMaxRetries, cfg.ScanRetryDelay),
		reconcile.WithLogger(logger),
	)

	failed := false
	for _, sf := range storefronts {
		result, err := reconciler.Reconcile(ctx, sf)
		if err != nil {
			logger.Printf("Reconcile %s failed: %v", sf.Slug, err)
			failed = true
			continue
		}
		observability.RecordReconcilePass(result.Storefront, result.Matched, result.Created,
			result.Reactivated, result.Removed, result.Filtered, result.PagesFailed,
			result.Duration.Seconds())

		fmt.Printf("%s: matched=%d created=%d updated=%d reactivated=%d removed=%d filtered=%d identities=%d in %v\n",
			result.Storefront, result.Matched, result.Created, result.Updated,
			result.Reactivated, result.Removed, result.Filtered, result.Identities, result.Duration)
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	if failed {
		os.Exit(1)
	}
}

// filterStorefronts narrows the set to one slug when requested.
func filterStorefronts(storefronts []feeds.Storefront, only string) []feeds.Storefront {
	only = strings.TrimSpace(only)
	if only == "" {
		return storefronts
	}
	var out []feeds.Storefront
	for _, sf := range storefronts {
		if sf.Slug == only {
			out = append(out, sf)
		}
	}
	return out
}
