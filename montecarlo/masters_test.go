package montecarlo_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/internal/concurrency"
	"github.com/palvalidator/core/montecarlo"
	"github.com/palvalidator/core/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drawSingleBarSecurity produces a one-bar security whose close price
// carries one uniform draw from rng, standing in for a full synthetic
// permutation so the step-down logic can be exercised without running an
// actual backtest per permutation.
func drawSingleBarSecurity(rng *rand.Rand) (*timeseries.Security, error) {
	bar := timeseries.Bar{
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:      decimal.FromFloat(100, 6),
		High:      decimal.FromFloat(101, 6),
		Low:       decimal.FromFloat(99, 6),
		Close:     decimal.FromFloat(rng.Float64(), 6),
		Volume:    decimal.FromInt(1, 2),
		Timeframe: timeseries.Daily,
	}
	series, err := timeseries.NewFromSortedBars(timeseries.Daily, timeseries.Shares, []timeseries.Bar{bar})
	if err != nil {
		return nil, err
	}
	return timeseries.NewEquity("SYN", "Synthetic", series)
}

// evalWithCoefficient computes a candidate-specific statistic from the
// shared draw's close price, standing in for a pattern-specific backtest
// statistic while preserving the joint correlation across candidates
// within one permutation.
func evalWithCoefficient(coeff float64) montecarlo.StrategyEval {
	return func(sec *timeseries.Security) (decimal.Decimal, error) {
		bars := sec.Series.Bars()
		return decimal.FromFloat(bars[0].Close.AsDouble()*coeff, 6), nil
	}
}

func buildCandidates() []montecarlo.Candidate {
	return []montecarlo.Candidate{
		{Name: "weak", Baseline: decimal.FromFloat(0.2, 6), Eval: evalWithCoefficient(1.0)},
		{Name: "strong", Baseline: decimal.FromFloat(0.95, 6), Eval: evalWithCoefficient(1.3)},
		{Name: "medium", Baseline: decimal.FromFloat(0.6, 6), Eval: evalWithCoefficient(1.1)},
	}
}

// buildTenPatternFixture builds the ten-candidate fixture spec.md §8's
// fast-vs-slow agreement scenario calls for: distinct baselines and
// correlation coefficients so candidates interleave under the shared
// per-permutation draw rather than tying trivially.
func buildTenPatternFixture() []montecarlo.Candidate {
	coeffs := []float64{0.4, 1.6, 0.9, 1.1, 0.7, 1.3, 1.0, 0.5, 1.45, 0.85}
	baselines := []float64{0.15, 0.92, 0.55, 0.63, 0.35, 0.78, 0.58, 0.22, 0.88, 0.48}
	candidates := make([]montecarlo.Candidate, len(coeffs))
	for i, c := range coeffs {
		candidates[i] = montecarlo.Candidate{
			Name:     decimal.FromFloat(baselines[i], 6).String(),
			Baseline: decimal.FromFloat(baselines[i], 6),
			Eval:     evalWithCoefficient(c),
		}
	}
	return candidates
}

func TestMastersStepDown_FastAgreesWithOriginal_TenPatternFixture(t *testing.T) {
	cfg := montecarlo.MastersConfig{
		Candidates: buildTenPatternFixture(),
		B:          500,
		Alpha:      0.20,
		RootSeed:   4242,
		Draw:       drawSingleBarSecurity,
		Executor:   concurrency.New(4),
	}

	original, err := montecarlo.MastersStepDownOriginal(cfg)
	require.NoError(t, err)
	fast, err := montecarlo.MastersStepDownFast(cfg)
	require.NoError(t, err)

	require.Len(t, fast, 10)
	require.Len(t, original, 10)
	for i := range original {
		assert.Equal(t, original[i].Name, fast[i].Name)
		assert.InDelta(t, original[i].AdjustedPValue, fast[i].AdjustedPValue, 1e-9)
		assert.Equal(t, original[i].Survived, fast[i].Survived)
	}
}

func TestMastersStepDown_FastAgreesWithOriginal(t *testing.T) {
	cfg := montecarlo.MastersConfig{
		Candidates: buildCandidates(),
		B:          500,
		Alpha:      0.20,
		RootSeed:   99,
		Draw:       drawSingleBarSecurity,
		Executor:   concurrency.New(4),
	}

	original, err := montecarlo.MastersStepDownOriginal(cfg)
	require.NoError(t, err)
	fast, err := montecarlo.MastersStepDownFast(cfg)
	require.NoError(t, err)

	require.Len(t, fast, len(original))
	for i := range original {
		assert.Equal(t, original[i].Name, fast[i].Name)
		assert.InDelta(t, original[i].AdjustedPValue, fast[i].AdjustedPValue, 1e-9)
		assert.Equal(t, original[i].Survived, fast[i].Survived)
	}
}

func TestMastersStepDown_SortsDescendingByBaseline(t *testing.T) {
	cfg := montecarlo.MastersConfig{
		Candidates: buildCandidates(),
		B:          100,
		Alpha:      0.20,
		RootSeed:   7,
		Draw:       drawSingleBarSecurity,
		Executor:   concurrency.New(2),
	}
	results, err := montecarlo.MastersStepDownOriginal(cfg)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "strong", results[0].Name)
	assert.Equal(t, "medium", results[1].Name)
	assert.Equal(t, "weak", results[2].Name)
}

func TestMastersStepDown_AdjustedPValuesAreMonotonicNonDecreasing(t *testing.T) {
	cfg := montecarlo.MastersConfig{
		Candidates: buildCandidates(),
		B:          300,
		Alpha:      0.20,
		RootSeed:   21,
		Draw:       drawSingleBarSecurity,
		Executor:   concurrency.New(4),
	}
	results, err := montecarlo.MastersStepDownOriginal(cfg)
	require.NoError(t, err)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].AdjustedPValue, results[i-1].AdjustedPValue)
	}
}
