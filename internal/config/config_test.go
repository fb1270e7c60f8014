package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cardarb/internal/feeds"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ScanMaxPages != 30 {
		t.Errorf("ScanMaxPages = %d, want 30", cfg.ScanMaxPages)
	}
	if cfg.BenchmarkMaxPerRun != 8 {
		t.Errorf("BenchmarkMaxPerRun = %d, want 8", cfg.BenchmarkMaxPerRun)
	}
	if cfg.BenchmarkMinAge != 24*time.Hour {
		t.Errorf("BenchmarkMinAge = %v, want 24h", cfg.BenchmarkMinAge)
	}
	if cfg.ScoreThreshold.String() != "0.85" {
		t.Errorf("ScoreThreshold = %s, want 0.85", cfg.ScoreThreshold)
	}
	if cfg.BenchmarkPriceFloor.String() != "30" {
		t.Errorf("BenchmarkPriceFloor = %s, want 30", cfg.BenchmarkPriceFloor)
	}
	if cfg.BenchmarkPriceCeiling.String() != "3000" {
		t.Errorf("BenchmarkPriceCeiling = %s, want 3000", cfg.BenchmarkPriceCeiling)
	}
	if cfg.OpportunityStaleTime != 6*time.Hour {
		t.Errorf("OpportunityStaleTime = %v, want 6h", cfg.OpportunityStaleTime)
	}
	if cfg.TargetCurrency != "AUD" {
		t.Errorf("TargetCurrency = %q, want AUD", cfg.TargetCurrency)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCAN_MAX_PAGES", "5")
	t.Setenv("BENCHMARK_MIN_AGE", "1h")
	t.Setenv("SCORE_THRESHOLD", "0.70")
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/test")

	cfg := Load()

	if cfg.ScanMaxPages != 5 {
		t.Errorf("ScanMaxPages = %d, want 5", cfg.ScanMaxPages)
	}
	if cfg.BenchmarkMinAge != time.Hour {
		t.Errorf("BenchmarkMinAge = %v, want 1h", cfg.BenchmarkMinAge)
	}
	if cfg.ScoreThreshold.String() != "0.7" {
		t.Errorf("ScoreThreshold = %s, want 0.7", cfg.ScoreThreshold)
	}
	if cfg.PostgresDSN != "postgres://localhost:5432/test" {
		t.Errorf("PostgresDSN = %q", cfg.PostgresDSN)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SCAN_MAX_PAGES", "lots")
	t.Setenv("BENCHMARK_MIN_AGE", "soon")
	t.Setenv("SCORE_THRESHOLD", "most")

	cfg := Load()

	if cfg.ScanMaxPages != 30 {
		t.Errorf("ScanMaxPages = %d, want default 30", cfg.ScanMaxPages)
	}
	if cfg.BenchmarkMinAge != 24*time.Hour {
		t.Errorf("BenchmarkMinAge = %v, want default 24h", cfg.BenchmarkMinAge)
	}
	if cfg.ScoreThreshold.String() != "0.85" {
		t.Errorf("ScoreThreshold = %s, want default 0.85", cfg.ScoreThreshold)
	}
}

func TestStorefrontsDefault(t *testing.T) {
	cfg := &Config{}
	storefronts, err := cfg.Storefronts()
	if err != nil {
		t.Fatalf("Storefronts failed: %v", err)
	}
	if len(storefronts) == 0 {
		t.Fatal("expected built-in storefronts")
	}
	for _, sf := range storefronts {
		if sf.Slug == "" || sf.BaseURL == "" || len(sf.Collections) == 0 {
			t.Errorf("incomplete storefront: %+v", sf)
		}
	}
}

func TestStorefrontsFromFile(t *testing.T) {
	want := []feeds.Storefront{
		{
			Slug:           "test-store",
			BaseURL:        "https://test.example.com",
			Collections:    []feeds.Collection{{Handle: "graded", DefaultGrader: "PSA"}},
			RequireInStock: true,
			TrackedGrade:   10,
		},
	}
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "storefronts.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := &Config{StorefrontsFile: path}
	storefronts, err := cfg.Storefronts()
	if err != nil {
		t.Fatalf("Storefronts failed: %v", err)
	}
	if len(storefronts) != 1 || storefronts[0].Slug != "test-store" {
		t.Errorf("unexpected storefronts: %+v", storefronts)
	}
	if storefronts[0].Collections[0].Handle != "graded" {
		t.Errorf("unexpected collections: %+v", storefronts[0].Collections)
	}
}

func TestStorefrontsEmptyFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefronts.json")
	if err := os.WriteFile(path, []byte("[]"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := &Config{StorefrontsFile: path}
	if _, err := cfg.Storefronts(); err == nil {
		t.Fatal("expected error for empty storefront file")
	}
}
