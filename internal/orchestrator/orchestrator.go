// Package orchestrator coordinates full pipeline cycles.
// Flow: reconcile each storefront → compute benchmarks → score
// opportunities. Stages communicate only through persisted state, so a
// stage retried after partial completion always converges on the same
// outcome.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"cardarb/internal/benchmark"
	"cardarb/internal/feeds"
	"cardarb/internal/reconcile"
	"cardarb/internal/scoring"
)

// Default stage retry parameters. Stages are idempotent, so at-least-once
// execution under retry is safe.
const (
	DefaultStageRetries = 3
	DefaultStageDelay   = 5 * time.Second
)

// Options for creating an Orchestrator.
type Options struct {
	Reconciler  *reconcile.Reconciler
	Engine      *benchmark.Engine
	Scorer      *scoring.Scorer
	Storefronts []feeds.Storefront

	// SkipBenchmarks runs reconcile and score only, for cycles scheduled
	// between market data refreshes.
	SkipBenchmarks bool

	// ForceBenchmarks bypasses the benchmark freshness skip.
	ForceBenchmarks bool

	StageRetries int
	StageDelay   time.Duration
	Logger       *log.Logger
}

// Orchestrator runs pipeline cycles.
type Orchestrator struct {
	reconciler  *reconcile.Reconciler
	engine      *benchmark.Engine
	scorer      *scoring.Scorer
	storefronts []feeds.Storefront

	skipBenchmarks  bool
	forceBenchmarks bool
	stageRetries    int
	stageDelay      time.Duration
	logger          *log.Logger
}

// CycleResult aggregates per-stage results for one cycle.
type CycleResult struct {
	RunID      string
	Reconciled []*reconcile.Result
	Benchmarks *benchmark.Result
	Scoring    *scoring.Result
	Errors     []string
	StartedAt  time.Time
	Duration   time.Duration
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		reconciler:      opts.Reconciler,
		engine:          opts.Engine,
		scorer:          opts.Scorer,
		storefronts:     opts.Storefronts,
		skipBenchmarks:  opts.SkipBenchmarks,
		forceBenchmarks: opts.ForceBenchmarks,
		stageRetries:    opts.StageRetries,
		stageDelay:      opts.StageDelay,
		logger:          opts.Logger,
	}
	if o.stageRetries <= 0 {
		o.stageRetries = DefaultStageRetries
	}
	if o.stageDelay <= 0 {
		o.stageDelay = DefaultStageDelay
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	return o
}

// RunCycle executes one full cycle. A storefront whose reconciliation
// fails after retries is recorded and does not block the others; the
// benchmark and scoring stages abort the cycle only when they fail as a
// whole after retries.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleResult, error) {
	started := time.Now()
	result := &CycleResult{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}
	o.logger.Printf("[orchestrator] run %s: starting cycle with %d storefronts", result.RunID, len(o.storefronts))

	for _, sf := range o.storefronts {
		var recResult *reconcile.Result
		err := o.retryStage(ctx, fmt.Sprintf("reconcile %s", sf.Slug), func() error {
			var stageErr error
			recResult, stageErr = o.reconciler.Reconcile(ctx, sf)
			return stageErr
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("reconcile %s: %v", sf.Slug, err))
			continue
		}
		result.Reconciled = append(result.Reconciled, recResult)
	}

	if o.engine != nil && !o.skipBenchmarks {
		var benchResult *benchmark.Result
		err := o.retryStage(ctx, "benchmark", func() error {
			var stageErr error
			benchResult, stageErr = o.engine.Compute(ctx, benchmark.Options{Force: o.forceBenchmarks})
			return stageErr
		})
		if err != nil {
			return nil, fmt.Errorf("benchmark stage failed: %w", err)
		}
		result.Benchmarks = benchResult
	}

	var scoreResult *scoring.Result
	err := o.retryStage(ctx, "score", func() error {
		var stageErr error
		scoreResult, stageErr = o.scorer.Score(ctx, scoring.Options{})
		return stageErr
	})
	if err != nil {
		return nil, fmt.Errorf("scoring stage failed: %w", err)
	}
	result.Scoring = scoreResult

	result.Duration = time.Since(started)
	o.logger.Printf("[orchestrator] run %s: cycle complete in %v (%d stage errors)",
		result.RunID, result.Duration, len(result.Errors))
	return result, nil
}

// retryStage invokes a stage with bounded fixed-delay retries. Context
// cancellation aborts immediately.
func (o *Orchestrator) retryStage(ctx context.Context, name string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= o.stageRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.stageDelay):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		o.logger.Printf("[orchestrator] stage %s attempt %d/%d failed: %v", name, attempt, o.stageRetries, lastErr)
	}
	return lastErr
}
