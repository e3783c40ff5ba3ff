// Package permutation implements the baseline-statistic extractors of
// spec.md's C9: the scalar test statistics the Monte Carlo drivers (C10)
// compare between a baseline backtest and its synthetic permutations, plus
// the null-trade policy that assigns a worst-case value when a synthetic
// backtest produces too few trades to be meaningful. Grounded on
// original_source/libs/timeserieslib/PermutationStatisticsCollector.h-style
// statistic extraction described in spec.md §4.9.
package permutation

import (
	"math"
	"math/rand"

	"github.com/palvalidator/core/broker"
	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/resample"
)

// WorstCase is the statistic recorded for a synthetic backtest that did not
// clear its policy's minimum-trade guard, treated as "no effect" under the
// null per spec.md §4.9.
var WorstCase = decimal.MustParse("-999999999.000000", 6)

// Statistic extracts a scalar test statistic from a completed backtest's
// closed-trade ledger, enforcing a minimum-trade guard below which the
// statistic is recorded as WorstCase.
type Statistic interface {
	Name() string
	MinTrades() int
	Extract(trades broker.ClosedTrades) (decimal.Decimal, error)
}

// Evaluate applies a Statistic's minimum-trade guard before extraction.
func Evaluate(s Statistic, trades broker.ClosedTrades) (decimal.Decimal, error) {
	if trades.Count() < s.MinTrades() {
		return WorstCase, nil
	}
	return s.Extract(trades)
}

// CumulativeReturn is the total compounded return across closed trades.
type CumulativeReturn struct{}

func (CumulativeReturn) Name() string    { return "CumulativeReturn" }
func (CumulativeReturn) MinTrades() int  { return 3 }
func (CumulativeReturn) Extract(trades broker.ClosedTrades) (decimal.Decimal, error) {
	return trades.CumulativeReturn()
}

// PalProfitability is the median PAL profitability over a bootstrap
// distribution of the trade win/loss sequence, per spec.md §3's
// bootstrap-smoothed win-rate statistic.
type PalProfitability struct {
	Sampler *resample.StationaryResampler
	Draws   int
	Rng     *rand.Rand
}

func (PalProfitability) Name() string   { return "PalProfitability" }
func (PalProfitability) MinTrades() int { return 3 }

func (p PalProfitability) Extract(trades broker.ClosedTrades) (decimal.Decimal, error) {
	return trades.MedianPalProfitability(p.Sampler, p.Draws, p.Rng)
}

// PessimisticReturnRatio is (W·avgWin − √W·stdevWin) / (L·avgLoss +
// √L·stdevLoss).
type PessimisticReturnRatio struct{}

func (PessimisticReturnRatio) Name() string   { return "PessimisticReturnRatio" }
func (PessimisticReturnRatio) MinTrades() int { return 3 }
func (PessimisticReturnRatio) Extract(trades broker.ClosedTrades) (decimal.Decimal, error) {
	return trades.PessimisticReturnRatio()
}

// NormalizedReturn scales cumulative return by
// sqrt(opportunities)/sqrt(barsInMarket), where opportunities is the
// number of bars on which an entry pattern was evaluated and barsInMarket
// is the ledger's total time-in-market.
type NormalizedReturn struct {
	Opportunities int
}

func (NormalizedReturn) Name() string   { return "NormalizedReturn" }
func (NormalizedReturn) MinTrades() int { return 3 }

func (n NormalizedReturn) Extract(trades broker.ClosedTrades) (decimal.Decimal, error) {
	cum, err := trades.CumulativeReturn()
	if err != nil {
		return decimal.Decimal{}, err
	}
	barsInMarket := trades.TimeInMarket()
	if barsInMarket == 0 {
		return WorstCase, nil
	}
	scale := math.Sqrt(float64(n.Opportunities)) / math.Sqrt(float64(barsInMarket))
	return decimal.FromFloat(cum.AsDouble()*scale, 6), nil
}
