// Package resample implements the stationary block bootstrap family of
// spec.md's C6: a plain (regime-blind) stationary resampler, a
// regime-mix-aware variant that honors target regime weights while keeping
// each copied block inside a single regime, and a shared delete-block
// jackknife. Grounded on
// original_source/libs/statistics/RegimeMixStationaryResampler.h.
package resample

import (
	"math"
	"math/rand"

	"github.com/palvalidator/core/decimal"
	"github.com/pkg/errors"
)

// ErrTooShort is returned when the source series or requested output length
// is below the minimum the resampler can operate on.
var ErrTooShort = errors.New("resample: series or requested length too short")

// ErrSizeMismatch is returned when regime labels do not match the source
// series length.
var ErrSizeMismatch = errors.New("resample: labels size does not match series size")

// ErrInvalidWeights is returned when target regime weights are negative or
// sum to zero.
var ErrInvalidWeights = errors.New("resample: invalid regime weights")

// geometricLength draws a stationary-bootstrap block length: 1 + Geom(p),
// p = 1/meanLen, via inverse-CDF sampling on rng.Float64(), matching the
// original's std::geometric_distribution usage.
func geometricLength(rng *rand.Rand, meanLen int) int {
	p := 1.0 / float64(meanLen)
	u := rng.Float64()
	if u <= 0 {
		u = math.SmallestNonzeroFloat64
	}
	draw := int(math.Floor(math.Log(u) / math.Log(1-p)))
	if draw < 0 {
		draw = 0
	}
	return 1 + draw
}

func copyWithWrap(x []decimal.Decimal, start, k int, out []decimal.Decimal) []decimal.Decimal {
	n := len(x)
	roomToEnd := n - start
	if k <= roomToEnd {
		return append(out, x[start:start+k]...)
	}
	out = append(out, x[start:]...)
	rem := k - roomToEnd
	return append(out, x[:rem]...)
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// jackknifeDeleteBlock computes one statistic replicate per circular
// deleted-block start, keeping the n-L_eff elements immediately following
// the deleted block (with wrap), per the original's jackknife template
// method shared by both resampler variants.
func jackknifeDeleteBlock(x []decimal.Decimal, meanLen int, stat func([]decimal.Decimal) decimal.Decimal) ([]decimal.Decimal, error) {
	n := len(x)
	if n < 2 {
		return nil, ErrTooShort
	}
	lEff := minInt(meanLen, n-1)
	keep := n - lEff

	jk := make([]decimal.Decimal, n)
	buf := make([]decimal.Decimal, keep)
	for start := 0; start < n; start++ {
		startKeep := (start + lEff) % n
		tail := minInt(keep, n-startKeep)
		copy(buf[:tail], x[startKeep:startKeep+tail])
		head := keep - tail
		if head != 0 {
			copy(buf[tail:], x[:head])
		}
		jk[start] = stat(buf)
	}
	return jk, nil
}

// StationaryResampler is a regime-blind Politis & Romano stationary block
// bootstrap: block lengths follow a geometric distribution with mean L,
// copied circularly from the source series.
type StationaryResampler struct {
	L int
}

// NewStationaryResampler builds a resampler with mean block length L,
// coerced to at least 2.
func NewStationaryResampler(L int) *StationaryResampler {
	if L < 2 {
		L = 2
	}
	return &StationaryResampler{L: L}
}

// Sample draws a bootstrap replicate of length n from x.
func (s *StationaryResampler) Sample(x []decimal.Decimal, n int, rng *rand.Rand) ([]decimal.Decimal, error) {
	if len(x) < 2 || n < 2 {
		return nil, ErrTooShort
	}
	out := make([]decimal.Decimal, 0, n)
	for len(out) < n {
		start := rng.Intn(len(x))
		length := geometricLength(rng, s.L)
		remaining := n - len(out)
		k := minInt(length, remaining)
		out = copyWithWrap(x, start, k, out)
	}
	return out, nil
}

// Jackknife computes the delete-block jackknife replicates of stat over x,
// using this resampler's mean block length as the deleted-block length.
func (s *StationaryResampler) Jackknife(x []decimal.Decimal, stat func([]decimal.Decimal) decimal.Decimal) ([]decimal.Decimal, error) {
	return jackknifeDeleteBlock(x, s.L, stat)
}

// RegimeMixResampler is the regime-aware stationary bootstrap: it targets a
// desired mix of regime labels in the output while keeping each copied
// block inside a single regime (truncating block length to the remaining
// same-regime run).
type RegimeMixResampler struct {
	L                int
	labels           []int
	weights          []float64 // normalized, indexed by regime
	minBarsPerRegime int
}

// NewRegimeMixResampler validates labels/weights and normalizes weights to
// sum to 1, per the original constructor's contract.
func NewRegimeMixResampler(L int, labels []int, targetWeights []float64, minBarsPerRegime int) (*RegimeMixResampler, error) {
	if L < 2 {
		L = 2
	}
	if len(labels) == 0 {
		return nil, errors.Wrap(ErrTooShort, "empty labels")
	}
	numRegimes := maxLabel(labels) + 1
	if len(targetWeights) != numRegimes {
		return nil, errors.Wrapf(ErrInvalidWeights, "expected %d weights, got %d", numRegimes, len(targetWeights))
	}
	sum := 0.0
	weights := make([]float64, len(targetWeights))
	copy(weights, targetWeights)
	for _, w := range weights {
		if w < 0 {
			return nil, errors.Wrap(ErrInvalidWeights, "negative weight")
		}
		sum += w
	}
	if sum <= 0 {
		return nil, errors.Wrap(ErrInvalidWeights, "zero weight sum")
	}
	for i := range weights {
		weights[i] /= sum
	}
	if minBarsPerRegime <= 0 {
		minBarsPerRegime = 8
	}
	return &RegimeMixResampler{L: L, labels: labels, weights: weights, minBarsPerRegime: minBarsPerRegime}, nil
}

func maxLabel(labels []int) int {
	m := -1
	for _, v := range labels {
		if v > m {
			m = v
		}
	}
	if m < 0 {
		return 0
	}
	return m
}

func (r *RegimeMixResampler) sameRegimeRunLenFrom(idx, s, xn int) int {
	length := 0
	for length < xn {
		j := (idx + length) % xn
		if r.labels[j] != s {
			break
		}
		length++
	}
	if length < 1 {
		return 1
	}
	return length
}

// Sample draws a regime-mix bootstrap replicate of length n from x, whose
// labels must already have been supplied to the constructor and match x in
// length.
func (r *RegimeMixResampler) Sample(x []decimal.Decimal, n int, rng *rand.Rand) ([]decimal.Decimal, error) {
	if len(x) < 2 || n < 2 {
		return nil, ErrTooShort
	}
	if len(x) != len(r.labels) {
		return nil, ErrSizeMismatch
	}
	xn := len(x)
	numRegimes := len(r.weights)

	pools := make([][]int, numRegimes)
	for t := 0; t < xn; t++ {
		s := r.labels[t]
		if s >= 0 && s < numRegimes {
			pools[s] = append(pools[s], t)
		}
	}

	quota := make([]int, numRegimes)
	assigned := 0
	for s := 0; s < numRegimes; s++ {
		quota[s] = int(math.Round(r.weights[s] * float64(n)))
		assigned += quota[s]
	}
	for assigned < n {
		s := assigned % numRegimes
		quota[s]++
		assigned++
	}
	for assigned > n {
		s := assigned % numRegimes
		if quota[s] > 0 {
			quota[s]--
			assigned--
		} else {
			assigned-- // quota[s] already zero; still counts toward closing the drift
		}
	}

	out := make([]decimal.Decimal, 0, n)
	s := 0
	safety := 0
	for len(out) < n && safety < 10*n {
		if quota[s] == 0 || len(pools[s]) == 0 {
			s = (s + 1) % numRegimes
			safety++
			continue
		}
		pool := pools[s]
		start := pool[rng.Intn(len(pool))]
		length := geometricLength(rng, r.L)
		runLen := r.sameRegimeRunLenFrom(start, s, xn)
		remaining := n - len(out)
		k := minInt(length, runLen, remaining, quota[s])
		if k == 0 {
			s = (s + 1) % numRegimes
			safety++
			continue
		}
		out = copyWithWrap(x, start, k, out)
		quota[s] -= k
		s = (s + 1) % numRegimes
		safety++
	}

	for len(out) < n {
		remaining := n - len(out)
		start := rng.Intn(xn)
		s0 := r.labels[start]
		runLen := r.sameRegimeRunLenFrom(start, s0, xn)
		length := geometricLength(rng, r.L)
		k := minInt(length, runLen, remaining)
		if k == 0 {
			k = 1
		}
		out = copyWithWrap(x, start, k, out)
	}
	return out, nil
}

// Jackknife computes the delete-block jackknife replicates of stat over x,
// using this resampler's mean block length as the deleted-block length.
func (r *RegimeMixResampler) Jackknife(x []decimal.Decimal, stat func([]decimal.Decimal) decimal.Decimal) ([]decimal.Decimal, error) {
	return jackknifeDeleteBlock(x, r.L, stat)
}
