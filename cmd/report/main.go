// Package main provides the report generation entry point. Renders the
// current active opportunity set as Markdown and CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"cardarb/internal/config"
	"cardarb/internal/reporting"
	"cardarb/internal/storage/migrations"
	"cardarb/internal/storage/postgres"
)

func main() {
	cfg := config.Load()

	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	outputDir := flag.String("output-dir", "output", "Output directory for generated reports")
	flag.Parse()

	logger := log.New(os.Stdout, "[report] ", log.LstdFlags)

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

	gen := reporting.NewGenerator(postgres.NewOpportunityStore(pool))
	report, err := gen.Generate(ctx)
	if err != nil {
		logger.Fatalf("Failed to generate report: %v", err)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		logger.Fatalf("Failed to create output directory: %v", err)
	}

	mdPath := filepath.Join(*outputDir, "OPPORTUNITIES.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
		logger.Fatalf("Failed to write markdown report: %v", err)
	}

	csvPath := filepath.Join(*outputDir, "opportunities.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.Opportunities)), 0644); err != nil {
		logger.Fatalf("Failed to write CSV report: %v", err)
	}

	fmt.Printf("Report generated (%d active opportunities):\n", report.TotalActive)
	fmt.Printf("  - %s\n", mdPath)
	fmt.Printf("  - %s\n", csvPath)
}
