package indicators

import (
	"math"

	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/timeseries"
	"github.com/pkg/errors"
)

// VariancePolicy selects the per-bar daily-variance estimator feeding the
// adaptive-volatility EMA.
type VariancePolicy int

const (
	// CloseToClose uses (c[t]/c[t-1] - 1)^2.
	CloseToClose VariancePolicy = iota
	// SimonsHLC uses the Yang-Zhang-style Simons high/low/close estimator.
	SimonsHLC
)

const (
	alphaMin = 0.05
	alphaMax = 0.50
	// ln2Term = 2*ln(2) - 1, used by the Simons HLC variance estimator.
	ln2Term = 0.3862943611198906
)

// AdaptiveVolatilityAnnualized computes, per bar, a rolling-R²-modulated EMA
// of daily variance, annualized by factor A. Requires len(bars) > L.
//
// alpha[t] = clamp(exp(-10*(1-r2[t])), 0.05, 0.5), seeded from the first
// variance observation, matching the original's adaptive smoothing scheme
// (original_source/libs/timeseries/TimeSeriesIndicators.h).
func AdaptiveVolatilityAnnualized(bars []timeseries.Bar, L int, annualizationFactor float64, policy VariancePolicy) ([]decimal.Decimal, error) {
	if L < 2 {
		return nil, errors.Wrap(ErrDomain, "adaptive volatility: L must be >= 2")
	}
	if len(bars) <= L {
		return []decimal.Decimal{}, nil
	}

	closes := make([]decimal.Decimal, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	r2, err := RollingR2(closes, L)
	if err != nil {
		return nil, err
	}
	// r2[i] corresponds to the window ending at bar index i+L-1.
	variances := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		variances[i] = dailyVariance(bars[i], bars[i-1], policy)
	}

	out := make([]decimal.Decimal, 0, len(bars)-L)
	var ema float64
	seeded := false
	for i := L; i < len(bars); i++ {
		r2Idx := i - (L - 1)
		var alpha float64
		if r2Idx >= 0 && r2Idx < len(r2) {
			rr := r2[r2Idx].AsDouble()
			alpha = math.Exp(-10 * (1 - rr))
			if alpha < alphaMin {
				alpha = alphaMin
			}
			if alpha > alphaMax {
				alpha = alphaMax
			}
		} else {
			alpha = alphaMin
		}

		v := variances[i]
		if !seeded {
			ema = v
			seeded = true
		} else {
			ema = alpha*v + (1-alpha)*ema
		}
		if ema < 0 {
			ema = 0
		}
		annualized := math.Sqrt(ema * annualizationFactor)
		out = append(out, decimal.FromFloat(annualized, defaultScale))
	}
	return out, nil
}

func dailyVariance(curr, prev timeseries.Bar, policy VariancePolicy) float64 {
	switch policy {
	case SimonsHLC:
		h := curr.High.AsDouble()
		l := curr.Low.AsDouble()
		c := curr.Close.AsDouble()
		cp := prev.Close.AsDouble()
		hi := h
		if cp > hi {
			hi = cp
		}
		lo := l
		if cp < lo {
			lo = cp
		}
		term1 := 0.5 * math.Pow(math.Log(hi/lo), 2)
		term2 := ln2Term * math.Pow(math.Log(c/cp), 2)
		return term1 - term2
	default: // CloseToClose
		c := curr.Close.AsDouble()
		cp := prev.Close.AsDouble()
		r := c/cp - 1
		return r * r
	}
}

// TypicalDayWidths computes target/stop width candidates from the median to
// the (1-alpha) and alpha quantiles of winsorized ROC, alpha defaulting to
// 0.10.
func TypicalDayWidths(roc []decimal.Decimal, alpha float64) (target, stop decimal.Decimal, err error) {
	if alpha <= 0 || alpha >= 0.5 {
		alpha = 0.10
	}
	winsorized, err := Winsorize(roc, alpha)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	med, err := Median(winsorized)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	upperQ, err := LinearInterpolationQuantile(winsorized, 1-alpha)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	lowerQ, err := LinearInterpolationQuantile(winsorized, alpha)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	target, err = upperQ.Sub(med)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	stopDiff, err := med.Sub(lowerQ)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	return target, stopDiff, nil
}

// CalibratedTypicalDayWidths performs a 25-step grid search over alpha in
// [0.06, 0.16] to find the width pair whose target width is closest to a
// legacy baseline width, matching spec.md's "calibrated-alpha variants".
func CalibratedTypicalDayWidths(roc []decimal.Decimal, baselineTargetWidth decimal.Decimal) (target, stop decimal.Decimal, bestAlpha float64, err error) {
	const steps = 25
	const lo, hi = 0.06, 0.16
	baseline := baselineTargetWidth.AsDouble()
	bestDiff := math.MaxFloat64

	for i := 0; i < steps; i++ {
		a := lo + (hi-lo)*float64(i)/float64(steps-1)
		t, s, werr := TypicalDayWidths(roc, a)
		if werr != nil {
			return decimal.Decimal{}, decimal.Decimal{}, 0, werr
		}
		diff := math.Abs(t.AsDouble() - baseline)
		if diff < bestDiff {
			bestDiff = diff
			target, stop, bestAlpha = t, s, a
		}
	}
	return target, stop, bestAlpha, nil
}
