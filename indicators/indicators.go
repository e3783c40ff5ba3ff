// Package indicators implements the statistical indicators of spec.md's C3:
// pure functions over slices of decimal.Decimal, grounded on
// original_source/libs/timeseries/TimeSeriesIndicators.h. These are distinct
// from the classic technical-analysis indicators (EMA/MACD/RSI/ATR) the
// teacher wraps in pkg/indicators/indicators.go via github.com/cinar/indicator/v2
// — that ambient adapter lives in package diagnostics and is not used here,
// since none of ROC/Qn/medcouple/adaptive-volatility are offered by that
// library.
package indicators

import (
	"math"
	"sort"

	"github.com/palvalidator/core/decimal"
	"github.com/pkg/errors"
)

// ErrEmptyInput is returned by indicators that require a non-empty vector.
var ErrEmptyInput = errors.New("indicators: empty input")

// ErrDomain covers out-of-domain arguments (e.g. Qn with n<2, ROC zero divisor).
var ErrDomain = errors.New("indicators: domain error")

const defaultScale = 8

// ROC computes the k-period rate of change in percent: for index i>=k,
// roc[i-k] = (s[i]/s[i-k] - 1) * 100. Output length is len(s)-k. Fails on a
// zero divisor.
func ROC(s []decimal.Decimal, k int) ([]decimal.Decimal, error) {
	if k <= 0 {
		return nil, errors.Wrap(ErrDomain, "ROC: k must be positive")
	}
	if len(s) <= k {
		return []decimal.Decimal{}, nil
	}
	hundred := decimal.FromInt(100, defaultScale)
	one := decimal.FromInt(1, defaultScale)
	out := make([]decimal.Decimal, 0, len(s)-k)
	for i := k; i < len(s); i++ {
		if s[i-k].IsZero() {
			return nil, errors.Wrapf(ErrDomain, "ROC: zero divisor at index %d", i-k)
		}
		ratio, err := s[i].Div(s[i-k], decimal.HalfAwayFromZero)
		if err != nil {
			return nil, err
		}
		delta, err := ratio.Sub(one)
		if err != nil {
			return nil, err
		}
		pct, err := delta.Mul(hundred)
		if err != nil {
			return nil, err
		}
		out = append(out, pct)
	}
	return out, nil
}

// Median returns the median of v (sort-copy; even length -> mean of middle
// two). Fails on empty input.
func Median(v []decimal.Decimal) (decimal.Decimal, error) {
	if len(v) == 0 {
		return decimal.Decimal{}, ErrEmptyInput
	}
	sorted := sortedCopy(v)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2], nil
	}
	two := decimal.FromInt(2, sorted[0].Scale())
	sum, err := sorted[n/2-1].Add(sorted[n/2])
	if err != nil {
		return decimal.Decimal{}, err
	}
	return sum.Div(two, decimal.HalfAwayFromZero)
}

func sortedCopy(v []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(v))
	copy(out, v)
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}

// LinearInterpolationQuantile computes the q-quantile (q in [0,1]) of v via
// linear interpolation between order statistics at r = q*(n-1). Accepts
// unsorted input (sorts internally), so quantile(v,q) == quantile(sort(v),q).
func LinearInterpolationQuantile(v []decimal.Decimal, q float64) (decimal.Decimal, error) {
	if len(v) == 0 {
		return decimal.Decimal{}, ErrEmptyInput
	}
	if q < 0 || q > 1 {
		return decimal.Decimal{}, errors.Wrapf(ErrDomain, "quantile: q=%v out of [0,1]", q)
	}
	sorted := sortedCopy(v)
	n := len(sorted)
	if n == 1 {
		return sorted[0], nil
	}
	r := q * float64(n-1)
	lo := int(math.Floor(r))
	hi := int(math.Ceil(r))
	if lo == hi {
		return sorted[lo], nil
	}
	frac := r - float64(lo)
	scale := sorted[0].Scale()
	weightHi := decimal.FromFloat(frac, scale+4)
	weightLo, err := decimal.FromInt(1, scale+4).Sub(weightHi)
	if err != nil {
		return decimal.Decimal{}, err
	}
	loTerm, err := sorted[lo].Mul(weightLo)
	if err != nil {
		return decimal.Decimal{}, err
	}
	hiTerm, err := sorted[hi].Mul(weightHi)
	if err != nil {
		return decimal.Decimal{}, err
	}
	result, err := loTerm.Add(hiTerm)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return result.ConvertScale(scale, decimal.HalfAwayFromZero)
}

// Quantile is an alias emphasising the boundary guarantees:
// Quantile(v,0) == min(v), Quantile(v,1) == max(v).
func Quantile(v []decimal.Decimal, q float64) (decimal.Decimal, error) {
	return LinearInterpolationQuantile(v, q)
}

// Winsorize clamps values below the tau-quantile up to that quantile, and
// values above the (1-tau)-quantile down to that quantile. tau is clamped
// to [0, 0.25]. Uses nearest-rank on (n-1)*p for selecting the clamp bounds.
func Winsorize(v []decimal.Decimal, tau float64) ([]decimal.Decimal, error) {
	if len(v) == 0 {
		return nil, ErrEmptyInput
	}
	if tau < 0 {
		tau = 0
	}
	if tau > 0.25 {
		tau = 0.25
	}
	if tau == 0 {
		out := make([]decimal.Decimal, len(v))
		copy(out, v)
		return out, nil
	}
	sorted := sortedCopy(v)
	n := len(sorted)
	lowIdx := nearestRank(n, tau)
	highIdx := nearestRank(n, 1-tau)
	lowBound := sorted[lowIdx]
	highBound := sorted[highIdx]

	out := make([]decimal.Decimal, len(v))
	for i, x := range v {
		switch {
		case x.LessThan(lowBound):
			out[i] = lowBound
		case x.GreaterThan(highBound):
			out[i] = highBound
		default:
			out[i] = x
		}
	}
	return out, nil
}

func nearestRank(n int, p float64) int {
	idx := int(math.Round(float64(n-1) * p))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}

// StandardDeviation returns the population standard deviation; 0 for empty input.
func StandardDeviation(v []decimal.Decimal) decimal.Decimal {
	if len(v) == 0 {
		return decimal.Zero(defaultScale)
	}
	scale := v[0].Scale()
	if scale < defaultScale {
		scale = defaultScale
	}
	mean := meanFloat(v)
	var sumSq float64
	for _, x := range v {
		d := x.AsDouble() - mean
		sumSq += d * d
	}
	variance := sumSq / float64(len(v))
	return decimal.FromFloat(math.Sqrt(variance), scale)
}

func meanFloat(v []decimal.Decimal) float64 {
	var sum float64
	for _, x := range v {
		sum += x.AsDouble()
	}
	return sum / float64(len(v))
}

// MedianAbsoluteDeviation returns 1.4826 * median(|x - median(x)|).
func MedianAbsoluteDeviation(v []decimal.Decimal) (decimal.Decimal, error) {
	if len(v) == 0 {
		return decimal.Decimal{}, ErrEmptyInput
	}
	med, err := Median(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	deviations := make([]decimal.Decimal, len(v))
	for i, x := range v {
		d, err := x.Sub(med)
		if err != nil {
			return decimal.Decimal{}, err
		}
		deviations[i] = d.Abs()
	}
	medDev, err := Median(deviations)
	if err != nil {
		return decimal.Decimal{}, err
	}
	factor := decimal.FromFloat(1.4826, medDev.Scale()+4)
	result, err := medDev.Mul(factor)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return result.ConvertScale(medDev.Scale(), decimal.HalfAwayFromZero)
}

// qnSmallSampleConstants are the exact correction constants for n<=9, per
// TimeSeriesIndicators.h::RobustQn::computeCorrectionFactor.
var qnSmallSampleConstants = [10]float64{
	0, 0, .399, .994, .512, .844, .611, .857, .669, .872,
}

func qnCorrectionFactor(n int) float64 {
	if n <= 9 {
		return qnSmallSampleConstants[n]
	}
	const asymp = 2.2219
	if n%2 == 1 {
		return (float64(n) / (float64(n) + 1.4)) * asymp
	}
	return (float64(n) / (float64(n) + 3.8)) * asymp
}

// Qn returns the Rousseeuw-Croux robust scale estimator. Returns 0 for n<2.
func Qn(v []decimal.Decimal) decimal.Decimal {
	n := len(v)
	if n < 2 {
		return decimal.Zero(defaultScale)
	}
	h := n/2 + 1
	k := h * (h - 1) / 2

	diffs := make([]float64, 0, n*(n-1)/2)
	for i := 0; i+1 < n; i++ {
		for j := i + 1; j < n; j++ {
			d := v[j].AsDouble() - v[i].AsDouble()
			if d < 0 {
				d = -d
			}
			diffs = append(diffs, d)
		}
	}
	sort.Float64s(diffs)
	med := diffs[k-1]
	scale := v[0].Scale()
	if scale < defaultScale {
		scale = defaultScale
	}
	return decimal.FromFloat(qnCorrectionFactor(n)*med, scale)
}

// Medcouple computes the robust, bounded medcouple skew statistic for n>=3.
// Pairs with zero denominator (xi==xj==m in the degenerate tied case) are
// skipped. Range is [-1, 1].
func Medcouple(v []decimal.Decimal) (decimal.Decimal, error) {
	if len(v) < 3 {
		return decimal.Decimal{}, errors.Wrap(ErrDomain, "medcouple: n must be >= 3")
	}
	sorted := sortedCopy(v)
	med, err := Median(sorted)
	if err != nil {
		return decimal.Decimal{}, err
	}
	m := med.AsDouble()

	var less, greater []float64
	for _, x := range sorted {
		xf := x.AsDouble()
		if xf < m {
			less = append(less, xf)
		} else if xf > m {
			greater = append(greater, xf)
		}
	}
	if len(less) == 0 || len(greater) == 0 {
		return decimal.Zero(defaultScale), nil
	}

	kernels := make([]float64, 0, len(less)*len(greater))
	for _, xi := range less {
		for _, xj := range greater {
			denom := xj - xi
			if denom == 0 {
				continue
			}
			h := ((xj - m) - (m - xi)) / denom
			kernels = append(kernels, h)
		}
	}
	if len(kernels) == 0 {
		return decimal.Zero(defaultScale), nil
	}
	sort.Float64s(kernels)
	n := len(kernels)
	var medianKernel float64
	if n%2 == 1 {
		medianKernel = kernels[n/2]
	} else {
		medianKernel = (kernels[n/2-1] + kernels[n/2]) / 2
	}
	return decimal.FromFloat(medianKernel, defaultScale), nil
}

// RollingR2 computes, for each window of length L ending at index i, the R²
// of an ordinary least-squares fit of the window's values against x=1..L.
// Output has length len(series)-L+1; r² values lie in [0,1]. Maintains O(1)
// per-step rolling sums after an O(L) seed, as spec.md requires.
func RollingR2(series []decimal.Decimal, L int) ([]decimal.Decimal, error) {
	if L < 2 {
		return nil, errors.Wrap(ErrDomain, "rolling r2: L must be >= 2")
	}
	if len(series) < L {
		return []decimal.Decimal{}, nil
	}
	values := make([]float64, len(series))
	for i, d := range series {
		values[i] = d.AsDouble()
	}

	n := float64(L)
	var sumX, sumX2 float64
	for x := 1; x <= L; x++ {
		sumX += float64(x)
		sumX2 += float64(x) * float64(x)
	}

	out := make([]decimal.Decimal, 0, len(values)-L+1)
	seed := func(start int) (sumY, sumY2, sumXY float64) {
		for i := 0; i < L; i++ {
			y := values[start+i]
			x := float64(i + 1)
			sumY += y
			sumY2 += y * y
			sumXY += x * y
		}
		return
	}

	sumY, sumY2, sumXY := seed(0)
	for start := 0; start+L <= len(values); start++ {
		if start > 0 {
			yOut, yIn := values[start-1], values[start+L-1]
			sumXY += n*yIn - sumY
			sumY += yIn - yOut
			sumY2 += yIn*yIn - yOut*yOut
		}
		numerator := n*sumXY - sumX*sumY
		denomX := n*sumX2 - sumX*sumX
		denomY := n*sumY2 - sumY*sumY
		var r2 float64
		if denomX > 0 && denomY > 0 {
			corr := numerator / math.Sqrt(denomX*denomY)
			r2 = corr * corr
		}
		if r2 < 0 {
			r2 = 0
		}
		if r2 > 1 {
			r2 = 1
		}
		out = append(out, decimal.FromFloat(r2, defaultScale))
	}
	return out, nil
}

// PercentRank computes, for each window of length W, the fraction of values
// in that window that are <= the window's last value.
func PercentRank(series []decimal.Decimal, W int) ([]decimal.Decimal, error) {
	if W < 1 {
		return nil, errors.Wrap(ErrDomain, "percent rank: W must be >= 1")
	}
	if len(series) < W {
		return []decimal.Decimal{}, nil
	}
	out := make([]decimal.Decimal, 0, len(series)-W+1)
	for start := 0; start+W <= len(series); start++ {
		window := series[start : start+W]
		last := window[W-1]
		count := 0
		for _, v := range window {
			if v.LessThanOrEqual(last) {
				count++
			}
		}
		rank := float64(count) / float64(W)
		out = append(out, decimal.FromFloat(rank, defaultScale))
	}
	return out, nil
}
