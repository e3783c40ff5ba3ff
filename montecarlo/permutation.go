// Package montecarlo implements the three Monte Carlo drivers of spec.md's
// C10: a per-strategy permutation test, and the original and fast variants
// of Masters' step-down multiple-comparison procedure. Grounded on
// original_source/libs/timeserieslib/MonteCarloPermutationTest.h (the
// count-exceedances-over-B loop) and MastersSuperiorityPolicy.h (the
// active-set step-down reconstruction).
package montecarlo

import (
	"math/rand"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/internal/concurrency"
	"github.com/pkg/errors"
)

// ErrNoEvalFunc is returned when a driver is configured without a
// statistic-evaluation function.
var ErrNoEvalFunc = errors.New("montecarlo: evaluation function is required")

// PermutationEval draws one synthetic realization using the supplied
// per-worker RNG stream, runs a full backtest against it, and returns the
// extracted statistic.
type PermutationEval func(rng *rand.Rand) (decimal.Decimal, error)

// PermutationResult is a per-strategy permutation test's outcome.
type PermutationResult struct {
	PValue    float64
	Count     int
	Evaluated int
	B         int
	EarlyExit bool

	// RunID is stamped fresh on every call to PerStrategyPermutation, so
	// that two concurrent driver invocations (e.g. an insample and an OOS
	// pass) are distinguishable in structured logs. It plays no role in
	// the statistical computation itself.
	RunID uuid.UUID
}

// PermutationConfig configures PerStrategyPermutation.
type PermutationConfig struct {
	Baseline decimal.Decimal
	B        int
	RootSeed int64
	Eval     PermutationEval
	Executor *concurrency.Executor

	// EarlyExit, when true, allows the driver to stop once the running
	// exceedance count passes 5% of B and report the conservative bound
	// 0.05 rather than an exact p-value.
	EarlyExit bool
}

// PerStrategyPermutation runs cfg.B independent synthetic backtests for a
// single strategy, counting how many produce a statistic at least as
// extreme as the baseline. p-value = count/B. Permutations are
// partitioned across cfg.Executor's worker pool; each worker owns one RNG
// stream seeded deterministically from cfg.RootSeed and its own worker
// index, so results are reproducible independent of scheduling order.
func PerStrategyPermutation(cfg PermutationConfig) (PermutationResult, error) {
	runID := uuid.New()
	if cfg.Eval == nil {
		return PermutationResult{}, ErrNoEvalFunc
	}
	if cfg.B <= 0 {
		return PermutationResult{B: cfg.B, RunID: runID}, nil
	}

	degree := cfg.Executor.Degree()
	perWorker := partitionCounts(cfg.B, degree)

	var count int64
	var evaluated int64
	var exceeded atomic.Bool
	threshold := int64(0.05 * float64(cfg.B))

	err := cfg.Executor.ParallelFor(degree, func(worker int) error {
		if perWorker[worker] == 0 {
			return nil
		}
		rng := rand.New(rand.NewSource(cfg.RootSeed + int64(worker)))
		for i := 0; i < perWorker[worker]; i++ {
			if cfg.EarlyExit && exceeded.Load() {
				return nil
			}
			stat, err := cfg.Eval(rng)
			if err != nil {
				return err
			}
			atomic.AddInt64(&evaluated, 1)
			if stat.GreaterThanOrEqual(cfg.Baseline) {
				n := atomic.AddInt64(&count, 1)
				if cfg.EarlyExit && n > threshold {
					exceeded.Store(true)
				}
			}
		}
		return nil
	})
	if err != nil {
		return PermutationResult{}, err
	}

	if cfg.EarlyExit && exceeded.Load() {
		return PermutationResult{
			PValue:    0.05,
			Count:     int(count),
			Evaluated: int(evaluated),
			B:         cfg.B,
			EarlyExit: true,
			RunID:     runID,
		}, nil
	}

	return PermutationResult{
		PValue:    float64(count) / float64(cfg.B),
		Count:     int(count),
		Evaluated: int(evaluated),
		B:         cfg.B,
		RunID:     runID,
	}, nil
}

// partitionCounts splits total work items as evenly as possible across
// workers, front-loading the remainder.
func partitionCounts(total, workers int) []int {
	if workers <= 0 {
		workers = 1
	}
	base := total / workers
	rem := total % workers
	counts := make([]int, workers)
	for i := range counts {
		counts[i] = base
		if i < rem {
			counts[i]++
		}
	}
	return counts
}
