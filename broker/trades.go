package broker

import (
	"math"
	"math/rand"

	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/indicators"
	"github.com/palvalidator/core/resample"
	"github.com/pkg/errors"
)

// ErrNoTrades is returned by statistics that are undefined over an empty
// trade ledger.
var ErrNoTrades = errors.New("broker: no closed trades")

// ClosedTrades is an append-only view over closed positions with derived
// performance statistics, per spec.md §3's ClosedTrades data model.
type ClosedTrades []*Position

// Count returns the number of closed trades.
func (c ClosedTrades) Count() int { return len(c) }

func (c ClosedTrades) winnersLosers() (winners, losers []*Position) {
	for _, p := range c {
		if p.IsWinning() {
			winners = append(winners, p)
		} else {
			losers = append(losers, p)
		}
	}
	return
}

// PalProfitability returns winners/(winners+losers).
func (c ClosedTrades) PalProfitability() (decimal.Decimal, error) {
	if len(c) == 0 {
		return decimal.Decimal{}, ErrNoTrades
	}
	winners, losers := c.winnersLosers()
	w := decimal.FromInt(int64(len(winners)), 6)
	total := decimal.FromInt(int64(len(winners)+len(losers)), 6)
	return w.Div(total, decimal.HalfAwayFromZero)
}

func (c ClosedTrades) returns() ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(c))
	for i, p := range c {
		r, err := p.PercentReturn()
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// ProfitFactor returns gross winning percent-return divided by gross
// losing percent-return (absolute value).
func (c ClosedTrades) ProfitFactor() (decimal.Decimal, error) {
	if len(c) == 0 {
		return decimal.Decimal{}, ErrNoTrades
	}
	grossWin := decimal.Zero(6)
	grossLoss := decimal.Zero(6)
	for _, p := range c {
		r, err := p.PercentReturn()
		if err != nil {
			return decimal.Decimal{}, err
		}
		if r.IsPositive() {
			grossWin, err = grossWin.Add(r)
		} else {
			grossLoss, err = grossLoss.Add(r.Abs())
		}
		if err != nil {
			return decimal.Decimal{}, err
		}
	}
	if grossLoss.IsZero() {
		return grossWin, nil
	}
	return grossWin.Div(grossLoss, decimal.HalfAwayFromZero)
}

// PayoffRatio returns average winning percent-return divided by average
// losing percent-return (absolute value).
func (c ClosedTrades) PayoffRatio() (decimal.Decimal, error) {
	if len(c) == 0 {
		return decimal.Decimal{}, ErrNoTrades
	}
	winners, losers := c.winnersLosers()
	if len(winners) == 0 || len(losers) == 0 {
		return decimal.Decimal{}, errors.Wrap(ErrNoTrades, "payoff ratio requires both winners and losers")
	}
	avgWin, err := averageReturn(winners)
	if err != nil {
		return decimal.Decimal{}, err
	}
	avgLoss, err := averageReturn(losers)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return avgWin.Div(avgLoss.Abs(), decimal.HalfAwayFromZero)
}

func averageReturn(trades []*Position) (decimal.Decimal, error) {
	sum := decimal.Zero(6)
	for _, p := range trades {
		r, err := p.PercentReturn()
		if err != nil {
			return decimal.Decimal{}, err
		}
		sum, err = sum.Add(r)
		if err != nil {
			return decimal.Decimal{}, err
		}
	}
	return sum.Div(decimal.FromInt(int64(len(trades)), 6), decimal.HalfAwayFromZero)
}

// CumulativeReturn compounds each trade's percent return: prod(1+r/100) - 1,
// expressed as a percentage.
func (c ClosedTrades) CumulativeReturn() (decimal.Decimal, error) {
	acc := decimal.FromInt(1, 8)
	for _, p := range c {
		r, err := p.PercentReturn()
		if err != nil {
			return decimal.Decimal{}, err
		}
		frac, err := r.Div(decimal.FromInt(100, r.Scale()), decimal.HalfAwayFromZero)
		if err != nil {
			return decimal.Decimal{}, err
		}
		factor, err := decimal.FromInt(1, frac.Scale()).Add(frac)
		if err != nil {
			return decimal.Decimal{}, err
		}
		acc, err = acc.Mul(factor)
		if err != nil {
			return decimal.Decimal{}, err
		}
	}
	one := decimal.FromInt(1, acc.Scale())
	result, err := acc.Sub(one)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return result.Mul(decimal.FromInt(100, result.Scale()))
}

// TimeInMarket sums the bar count each trade spent open.
func (c ClosedTrades) TimeInMarket() int {
	total := 0
	for _, p := range c {
		total += p.BarsHeld()
	}
	return total
}

// RMultipleExpectancy returns the average R-multiple across closed trades.
func (c ClosedTrades) RMultipleExpectancy() (decimal.Decimal, error) {
	if len(c) == 0 {
		return decimal.Decimal{}, ErrNoTrades
	}
	sum := decimal.Zero(6)
	for _, p := range c {
		r, err := p.RMultiple()
		if err != nil {
			return decimal.Decimal{}, err
		}
		sum, err = sum.Add(r)
		if err != nil {
			return decimal.Decimal{}, err
		}
	}
	return sum.Div(decimal.FromInt(int64(len(c)), 6), decimal.HalfAwayFromZero)
}

// PessimisticReturnRatio implements spec.md §4.9's
// (W·avgWin − √W·stdevWin) / (L·avgLoss + √L·stdevLoss).
func (c ClosedTrades) PessimisticReturnRatio() (decimal.Decimal, error) {
	winners, losers := c.winnersLosers()
	if len(winners) == 0 || len(losers) == 0 {
		return decimal.Decimal{}, errors.Wrap(ErrNoTrades, "pessimistic return ratio requires both winners and losers")
	}
	winRets, err := ClosedTrades(winners).returns()
	if err != nil {
		return decimal.Decimal{}, err
	}
	lossRets, err := ClosedTrades(losers).returns()
	if err != nil {
		return decimal.Decimal{}, err
	}

	w, l := float64(len(winners)), float64(len(losers))
	avgWin, avgLoss := meanFloat(winRets), meanFloat(lossRets)
	stdWin := indicators.StandardDeviation(winRets).AsDouble()
	stdLoss := indicators.StandardDeviation(lossRets).AsDouble()

	numerator := w*avgWin - math.Sqrt(w)*stdWin
	denominator := l*math.Abs(avgLoss) + math.Sqrt(l)*stdLoss
	if denominator == 0 {
		return decimal.Decimal{}, errors.Wrap(ErrNoTrades, "pessimistic return ratio: zero denominator")
	}
	return decimal.FromFloat(numerator/denominator, 6), nil
}

func meanFloat(vals []decimal.Decimal) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v.AsDouble()
	}
	return sum / float64(len(vals))
}

// MedianPalProfitability bootstraps the trade win/loss sequence with the
// given resampler and returns the median PAL profitability across draws,
// per spec.md §3's "median PAL profitability across a bootstrap
// distribution".
func (c ClosedTrades) MedianPalProfitability(sampler *resample.StationaryResampler, draws int, rng *rand.Rand) (decimal.Decimal, error) {
	if len(c) == 0 {
		return decimal.Decimal{}, ErrNoTrades
	}
	outcomes := make([]decimal.Decimal, len(c))
	for i, p := range c {
		if p.IsWinning() {
			outcomes[i] = decimal.FromInt(1, 6)
		} else {
			outcomes[i] = decimal.Zero(6)
		}
	}
	profitabilities := make([]decimal.Decimal, 0, draws)
	for i := 0; i < draws; i++ {
		sample, err := sampler.Sample(outcomes, len(outcomes), rng)
		if err != nil {
			return decimal.Decimal{}, err
		}
		sum := decimal.Zero(6)
		for _, v := range sample {
			var addErr error
			sum, addErr = sum.Add(v)
			if addErr != nil {
				return decimal.Decimal{}, addErr
			}
		}
		p, err := sum.Div(decimal.FromInt(int64(len(sample)), 6), decimal.HalfAwayFromZero)
		if err != nil {
			return decimal.Decimal{}, err
		}
		profitabilities = append(profitabilities, p)
	}
	return indicators.Median(profitabilities)
}
