// Package synthetic builds null-hypothesis OHLC paths by shuffling the
// relative-price factors of a source series while preserving its marginal
// distribution, per spec.md's C5. Grounded on
// original_source/libs/timeseries/SyntheticTimeSeries.h (relative-factor
// construction and reintegration) and ShuffleUtils.h (Fisher-Yates shuffle).
package synthetic

import (
	"math/rand"

	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/timeseries"
	"github.com/pkg/errors"
)

// ErrEmptySeries is returned when attempting to build a synthetic series
// from an empty source.
var ErrEmptySeries = errors.New("synthetic: source series is empty")

// relativeFactors holds the per-bar multiplicative factors derived from a
// source series, as in spec.md §4.5.
type relativeFactors struct {
	rOpen     []decimal.Decimal // rOpen[t] = O[t]/C[t-1], rOpen[0] = 1
	rHigh     []decimal.Decimal // rHigh[t] = H[t]/O[t]
	rLow      []decimal.Decimal // rLow[t]  = L[t]/O[t]
	rClose    []decimal.Decimal // rClose[t]= C[t]/O[t]
	firstOpen decimal.Decimal
}

func deriveRelativeFactors(bars []timeseries.Bar) (relativeFactors, error) {
	n := len(bars)
	if n == 0 {
		return relativeFactors{}, ErrEmptySeries
	}
	rf := relativeFactors{
		rOpen:     make([]decimal.Decimal, n),
		rHigh:     make([]decimal.Decimal, n),
		rLow:      make([]decimal.Decimal, n),
		rClose:    make([]decimal.Decimal, n),
		firstOpen: bars[0].Open,
	}
	rf.rOpen[0] = decimal.FromInt(1, bars[0].Open.Scale())
	for i, b := range bars {
		var err error
		rf.rHigh[i], err = b.High.Div(b.Open, decimal.HalfAwayFromZero)
		if err != nil {
			return relativeFactors{}, errors.Wrapf(err, "bar %d: high/open", i)
		}
		rf.rLow[i], err = b.Low.Div(b.Open, decimal.HalfAwayFromZero)
		if err != nil {
			return relativeFactors{}, errors.Wrapf(err, "bar %d: low/open", i)
		}
		rf.rClose[i], err = b.Close.Div(b.Open, decimal.HalfAwayFromZero)
		if err != nil {
			return relativeFactors{}, errors.Wrapf(err, "bar %d: close/open", i)
		}
		if i > 0 {
			rf.rOpen[i], err = b.Open.Div(bars[i-1].Close, decimal.HalfAwayFromZero)
			if err != nil {
				return relativeFactors{}, errors.Wrapf(err, "bar %d: open/prior-close", i)
			}
		}
	}
	return rf, nil
}

// fisherYates performs an in-place Fisher-Yates shuffle using rng, matching
// ShuffleUtils.h::inplaceShuffle's index draw order (from n-1 down to 1).
func fisherYates[T any](v []T, rng *rand.Rand) {
	for i := len(v) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		v[i], v[j] = v[j], v[i]
	}
}

// jointShuffle permutes three equal-length slices by the same permutation,
// preserving per-index (rHigh,rLow,rClose) geometry, per spec.md's
// "Jointly-index shuffle" step 2.
func jointShuffle(a, b, c []decimal.Decimal, rng *rand.Rand) {
	n := len(a)
	perm := rng.Perm(n)
	oa, ob, oc := make([]decimal.Decimal, n), make([]decimal.Decimal, n), make([]decimal.Decimal, n)
	for i, p := range perm {
		oa[i], ob[i], oc[i] = a[p], b[p], c[p]
	}
	copy(a, oa)
	copy(b, ob)
	copy(c, oc)
}

// integrate rebuilds a synthetic OHLC series from shuffled relative factors,
// preserving original timestamps and timeframe. Fails if any resulting bar
// violates OHLC invariants after tick rounding.
func integrate(bars []timeseries.Bar, rf relativeFactors, tick, tickHalf decimal.Decimal) (*timeseries.OHLCSeries, error) {
	n := len(bars)
	out := make([]timeseries.Bar, n)
	x := rf.firstOpen
	for i := 0; i < n; i++ {
		var err error
		x, err = x.Mul(rf.rOpen[i])
		if err != nil {
			return nil, err
		}
		synOpen := x
		x, err = x.Mul(rf.rClose[i])
		if err != nil {
			return nil, err
		}
		synClose := x

		rawHigh, err := synOpen.Mul(rf.rHigh[i])
		if err != nil {
			return nil, err
		}
		synHigh, err := decimal.RoundToTick(rawHigh, tick, tickHalf)
		if err != nil {
			return nil, err
		}

		rawLow, err := synOpen.Mul(rf.rLow[i])
		if err != nil {
			return nil, err
		}
		synLow, err := decimal.RoundToTick(rawLow, tick, tickHalf)
		if err != nil {
			return nil, err
		}

		b := timeseries.Bar{
			Timestamp: bars[i].Timestamp,
			Open:      synOpen,
			High:      synHigh,
			Low:       synLow,
			Close:     synClose,
			Volume:    bars[i].Volume,
			Timeframe: bars[i].Timeframe,
		}
		if err := b.Validate(); err != nil {
			return nil, errors.Wrapf(err, "synthetic bar %d failed OHLC invariants after rounding", i)
		}
		out[i] = b
	}
	return timeseries.NewFromSortedBars(bars[0].Timeframe, timeseries.Shares, out)
}

// BuildIID generates an independent-shuffle synthetic series: rOpen
// shuffled independently, (rHigh,rLow,rClose) jointly shuffled, preserving
// per-day intraday geometry but destroying the overnight/intraday linkage
// and all temporal order.
func BuildIID(source *timeseries.OHLCSeries, tick, tickHalf decimal.Decimal, rng *rand.Rand) (*timeseries.OHLCSeries, error) {
	bars := source.Bars()
	rf, err := deriveRelativeFactors(bars)
	if err != nil {
		return nil, err
	}
	fisherYates(rf.rOpen, rng)
	jointShuffle(rf.rHigh, rf.rLow, rf.rClose, rng)
	return integrate(bars, rf, tick, tickHalf)
}

// dayTuple is the indivisible per-day unit preserved by the N0 paired-day
// variant: (gap, H/O, L/O, C/O).
type dayTuple struct {
	gap, high, low, close decimal.Decimal
}

// BuildN0PairedDay generates a synthetic series that shuffles whole days
// (preserving each day's internal (gap, H/O, L/O, C/O) tuple as an
// indivisible unit) across the series, guaranteeing the multiset of tuples
// in the synthetic series equals that of the original. Day 0 has no
// defined gap (there is no prior close to gap from) and is excluded from
// the shuffle pool entirely, left untouched at position 0, matching
// original_source's day_factors construction over days 1..n-1 only.
func BuildN0PairedDay(source *timeseries.OHLCSeries, tick, tickHalf decimal.Decimal, rng *rand.Rand) (*timeseries.OHLCSeries, error) {
	bars := source.Bars()
	rf, err := deriveRelativeFactors(bars)
	if err != nil {
		return nil, err
	}
	n := len(bars)
	tuples := make([]dayTuple, n-1)
	for i := 1; i < n; i++ {
		tuples[i-1] = dayTuple{gap: rf.rOpen[i], high: rf.rHigh[i], low: rf.rLow[i], close: rf.rClose[i]}
	}
	fisherYates(tuples, rng)

	shuffled := relativeFactors{
		rOpen:     make([]decimal.Decimal, n),
		rHigh:     make([]decimal.Decimal, n),
		rLow:      make([]decimal.Decimal, n),
		rClose:    make([]decimal.Decimal, n),
		firstOpen: rf.firstOpen,
	}
	shuffled.rOpen[0] = rf.rOpen[0]
	shuffled.rHigh[0] = rf.rHigh[0]
	shuffled.rLow[0] = rf.rLow[0]
	shuffled.rClose[0] = rf.rClose[0]
	for i, tup := range tuples {
		shuffled.rOpen[i+1] = tup.gap
		shuffled.rHigh[i+1] = tup.high
		shuffled.rLow[i+1] = tup.low
		shuffled.rClose[i+1] = tup.close
	}
	return integrate(bars, shuffled, tick, tickHalf)
}
