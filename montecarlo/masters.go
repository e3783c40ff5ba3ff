package montecarlo

import (
	"math"
	"math/rand"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/internal/concurrency"
	"github.com/palvalidator/core/timeseries"
)

// StrategyEval runs one strategy's full backtest against a shared
// synthetic security realization and returns its extracted statistic. The
// same synthetic realization is passed to every candidate's Eval within a
// single permutation draw, preserving the joint correlation structure the
// step-down procedure depends on.
type StrategyEval func(sec *timeseries.Security) (decimal.Decimal, error)

// SyntheticDraw produces one synthetic security realization from a
// per-worker RNG stream.
type SyntheticDraw func(rng *rand.Rand) (*timeseries.Security, error)

// Candidate is one strategy entered into a Masters step-down test.
type Candidate struct {
	Name     string
	Baseline decimal.Decimal
	Eval     StrategyEval
}

// MastersConfig configures both Masters step-down variants. The two
// variants must be run with identical configuration (same RootSeed, same
// B, same Draw) to be comparable: spec.md's "fast == original under mild
// conditions" equivalence only holds when both consume the same sequence
// of synthetic realizations.
type MastersConfig struct {
	Candidates []Candidate
	B          int
	Alpha      float64
	RootSeed   int64
	Draw       SyntheticDraw
	Executor   *concurrency.Executor
}

// MastersOutcome is one candidate's step-down result.
type MastersOutcome struct {
	Name           string
	Baseline       decimal.Decimal
	AdjustedPValue float64
	Survived       bool

	// RunID is stamped fresh on every call to MastersStepDownOriginal or
	// MastersStepDownFast and shared by every candidate's outcome from
	// that one invocation, so concurrent driver runs are distinguishable
	// in structured logs. It plays no role in the statistical computation.
	RunID uuid.UUID
}

func sortedDescending(candidates []Candidate) []Candidate {
	sorted := append([]Candidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Baseline.GreaterThan(sorted[j].Baseline)
	})
	return sorted
}

// countMaxExceeding runs cfg.B permutations, each drawing one shared
// synthetic realization and evaluating every candidate in active against
// it, and counts how many permutations' max-over-active statistic is at
// least as extreme as baseline.
func countMaxExceeding(cfg MastersConfig, active []Candidate, baseline decimal.Decimal) (int64, error) {
	degree := cfg.Executor.Degree()
	perWorker := partitionCounts(cfg.B, degree)
	var exceedCount int64

	err := cfg.Executor.ParallelFor(degree, func(worker int) error {
		if perWorker[worker] == 0 {
			return nil
		}
		rng := rand.New(rand.NewSource(cfg.RootSeed + int64(worker)))
		for i := 0; i < perWorker[worker]; i++ {
			sec, err := cfg.Draw(rng)
			if err != nil {
				return err
			}
			var maxStat decimal.Decimal
			for j, c := range active {
				stat, err := c.Eval(sec)
				if err != nil {
					return err
				}
				if j == 0 || stat.GreaterThan(maxStat) {
					maxStat = stat
				}
			}
			if maxStat.GreaterThanOrEqual(baseline) {
				atomic.AddInt64(&exceedCount, 1)
			}
		}
		return nil
	})
	return exceedCount, err
}

// MastersStepDownOriginal implements the active-set reconstruction
// variant: at each step the active set is all not-yet-rejected
// candidates; a fresh null distribution of max-over-active statistics is
// computed over B permutations, compared against the current top
// candidate, and p-values are enforced non-decreasing across steps.
func MastersStepDownOriginal(cfg MastersConfig) ([]MastersOutcome, error) {
	runID := uuid.New()
	sorted := sortedDescending(cfg.Candidates)
	results := make([]MastersOutcome, len(sorted))
	for i, c := range sorted {
		results[i] = MastersOutcome{Name: c.Name, Baseline: c.Baseline, RunID: runID}
	}

	active := append([]Candidate(nil), sorted...)
	activeIdx := make([]int, len(sorted))
	for i := range activeIdx {
		activeIdx[i] = i
	}

	prevAdjusted := 0.0
	for len(active) > 0 {
		count, err := countMaxExceeding(cfg, active, active[0].Baseline)
		if err != nil {
			return nil, err
		}
		pvalue := float64(count) / float64(cfg.B+1)
		adjusted := math.Max(pvalue, prevAdjusted)

		if adjusted <= cfg.Alpha {
			results[activeIdx[0]].AdjustedPValue = adjusted
			results[activeIdx[0]].Survived = true
			prevAdjusted = adjusted
			active = active[1:]
			activeIdx = activeIdx[1:]
			continue
		}

		for _, idx := range activeIdx {
			results[idx].AdjustedPValue = adjusted
			results[idx].Survived = false
		}
		break
	}
	return results, nil
}

// MastersStepDownFast implements the single-sweep variant: one parallel
// loop over B permutations computes every candidate's statistic once per
// permutation and increments each candidate's exceedance counter when its
// own baseline is covered by that permutation's max. The step-down walk
// is then a single sequential pass over the pre-computed counters.
func MastersStepDownFast(cfg MastersConfig) ([]MastersOutcome, error) {
	runID := uuid.New()
	sorted := sortedDescending(cfg.Candidates)
	n := len(sorted)
	counts := make([]int64, n)

	degree := cfg.Executor.Degree()
	perWorker := partitionCounts(cfg.B, degree)

	err := cfg.Executor.ParallelFor(degree, func(worker int) error {
		if perWorker[worker] == 0 {
			return nil
		}
		rng := rand.New(rand.NewSource(cfg.RootSeed + int64(worker)))
		stats := make([]decimal.Decimal, n)
		for i := 0; i < perWorker[worker]; i++ {
			sec, err := cfg.Draw(rng)
			if err != nil {
				return err
			}
			var maxStat decimal.Decimal
			for j, c := range sorted {
				stat, err := c.Eval(sec)
				if err != nil {
					return err
				}
				stats[j] = stat
				if j == 0 || stat.GreaterThan(maxStat) {
					maxStat = stat
				}
			}
			for j := range sorted {
				if sorted[j].Baseline.LessThanOrEqual(maxStat) {
					atomic.AddInt64(&counts[j], 1)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]MastersOutcome, n)
	prevAdjusted := 0.0
	failed := false
	failAdjusted := 0.0
	for k, c := range sorted {
		results[k] = MastersOutcome{Name: c.Name, Baseline: c.Baseline, RunID: runID}
		if failed {
			results[k].AdjustedPValue = failAdjusted
			continue
		}
		pvalue := float64(counts[k]) / float64(cfg.B+1)
		adjusted := math.Max(pvalue, prevAdjusted)
		results[k].AdjustedPValue = adjusted
		if adjusted <= cfg.Alpha {
			results[k].Survived = true
			prevAdjusted = adjusted
		} else {
			failed = true
			failAdjusted = adjusted
		}
	}
	return results, nil
}
