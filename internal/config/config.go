// Package config loads application configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"cardarb/internal/domain"
	"cardarb/internal/feeds"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// PostgresDSN is the primary store. Empty selects the in-memory
	// stores, which only makes sense for one-shot local runs.
	PostgresDSN string

	// ClickhouseDSN enables the comparable-sample archive. Empty
	// disables archiving.
	ClickhouseDSN string

	EbayAppID      string
	EbayEndpoint   string
	TargetCurrency string

	FXEndpoint string
	FXCacheTTL time.Duration

	// StorefrontsFile overrides the built-in storefront set with a JSON
	// definition file.
	StorefrontsFile string

	ScanMaxPages   int
	ScanMaxRetries int
	ScanRetryDelay time.Duration

	BenchmarkMinAge       time.Duration
	BenchmarkMaxPerRun    int
	BenchmarkMaxResults   int
	BenchmarkPriceFloor   decimal.Decimal
	BenchmarkPriceCeiling decimal.Decimal

	ScoreThreshold       decimal.Decimal
	ListingMaxAge        time.Duration
	BenchmarkMaxAge      time.Duration
	OpportunityStaleTime time.Duration

	StageRetries  int
	StageDelay    time.Duration
	CycleInterval time.Duration

	MetricsAddr string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		ClickhouseDSN: getEnv("CLICKHOUSE_DSN", ""),

		EbayAppID:      getEnv("EBAY_APP_ID", ""),
		EbayEndpoint:   getEnv("EBAY_ENDPOINT", ""),
		TargetCurrency: getEnv("TARGET_CURRENCY", "AUD"),

		FXEndpoint: getEnv("FX_ENDPOINT", ""),
		FXCacheTTL: getEnvDuration("FX_CACHE_TTL", 12*time.Hour),

		StorefrontsFile: getEnv("STOREFRONTS_FILE", ""),

		ScanMaxPages:   getEnvInt("SCAN_MAX_PAGES", 30),
		ScanMaxRetries: getEnvInt("SCAN_MAX_RETRIES", 3),
		ScanRetryDelay: getEnvDuration("SCAN_RETRY_DELAY", time.Second),

		BenchmarkMinAge:       getEnvDuration("BENCHMARK_MIN_AGE", 24*time.Hour),
		BenchmarkMaxPerRun:    getEnvInt("BENCHMARK_MAX_PER_RUN", 8),
		BenchmarkMaxResults:   getEnvInt("BENCHMARK_MAX_RESULTS", 50),
		BenchmarkPriceFloor:   getEnvDecimal("BENCHMARK_PRICE_FLOOR", decimal.NewFromInt(30)),
		BenchmarkPriceCeiling: getEnvDecimal("BENCHMARK_PRICE_CEILING", decimal.NewFromInt(3000)),

		ScoreThreshold:       getEnvDecimal("SCORE_THRESHOLD", decimal.RequireFromString("0.85")),
		ListingMaxAge:        getEnvDuration("LISTING_MAX_AGE", 24*time.Hour),
		BenchmarkMaxAge:      getEnvDuration("BENCHMARK_MAX_AGE", 24*time.Hour),
		OpportunityStaleTime: getEnvDuration("OPPORTUNITY_STALE_AFTER", 6*time.Hour),

		StageRetries:  getEnvInt("STAGE_RETRIES", 3),
		StageDelay:    getEnvDuration("STAGE_DELAY", 5*time.Second),
		CycleInterval: getEnvDuration("CYCLE_INTERVAL", 30*time.Minute),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
	}
}

// Storefronts returns the storefront set to scan: the JSON definition
// file when configured, the built-in set otherwise.
func (c *Config) Storefronts() ([]feeds.Storefront, error) {
	if c.StorefrontsFile == "" {
		return DefaultStorefronts(), nil
	}

	data, err := os.ReadFile(c.StorefrontsFile)
	if err != nil {
		return nil, fmt.Errorf("read storefronts file: %w", err)
	}
	var storefronts []feeds.Storefront
	if err := json.Unmarshal(data, &storefronts); err != nil {
		return nil, fmt.Errorf("parse storefronts file: %w", err)
	}
	if len(storefronts) == 0 {
		return nil, fmt.Errorf("storefronts file %s defines no storefronts", c.StorefrontsFile)
	}
	return storefronts, nil
}

// DefaultStorefronts returns the built-in storefront set.
func DefaultStorefronts() []feeds.Storefront {
	return []feeds.Storefront{
		{
			Slug:    "cherry-collectables",
			BaseURL: "https://www.cherrycollectables.com.au",
			Collections: []feeds.Collection{
				{Handle: "pokemon-singles", DefaultGrader: domain.GraderPSA},
			},
			RequireInStock: true,
			TrackedGrade:   10,
		},
		{
			Slug:    "leo-games",
			BaseURL: "https://www.leogames.com.au",
			Collections: []feeds.Collection{
				{Handle: "psa-graded-pokemon", DefaultGrader: domain.GraderPSA},
				{Handle: "cgc-graded-pokemon", DefaultGrader: domain.GraderCGC},
			},
			RequireInStock: true,
			TrackedGrade:   10,
		},
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if val := os.Getenv(key); val != "" {
		d, err := decimal.NewFromString(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
