// Package correction implements spec.md's C11 multiple-testing
// corrections over a container of (strategy, p-value[, max-permuted-stat])
// results. Grounded on
// original_source/libs/timeserieslib/MultipleTestingCorrection.h: the
// descending-rank-scan Benjamini-Hochberg loop, the year-2000 adaptive
// slope estimator, and the shared reverse/forward empirical-p-value
// step-down walk used by Romano-Wolf and Holm-Romano-Wolf.
package correction

import "sort"

// DefaultFDR is the false discovery rate Benjamini-Hochberg and its
// adaptive variant use absent an explicit override.
const DefaultFDR = 0.20

// SignificantPValue is the survival threshold for Unadjusted, Romano-Wolf,
// and Holm-Romano-Wolf.
const SignificantPValue = 0.05

// Result is one strategy's correction outcome. MaxStat is only consumed
// by RomanoWolfStepDown and HolmRomanoWolf when no external synthetic
// null is supplied.
type Result struct {
	Name           string
	PValue         float64
	MaxStat        float64
	AdjustedPValue float64
	Survived       bool
}

func sortedByPValue(results []Result) []Result {
	out := append([]Result(nil), results...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PValue < out[j].PValue })
	return out
}

// BenjaminiHochberg finds the largest rank r (1-based, ascending p-value
// order) with p₍ᵣ₎ ≤ (r/m)·fdr and marks indices 1..r as survivors.
// Scans from the largest p-value down so the first satisfying rank found
// is, by construction, the largest one — matching the teacher's
// descending-scan-with-break loop exactly.
func BenjaminiHochberg(results []Result, fdr float64) []Result {
	out := sortedByPValue(results)
	m := len(out)
	if m == 0 {
		return out
	}
	survivFrom := 0 // no survivors until a satisfying rank is found
	for rank := m; rank >= 1; rank-- {
		critical := (float64(rank) / float64(m)) * fdr
		if out[rank-1].PValue <= critical {
			survivFrom = rank
			break
		}
	}
	for i := range out {
		out[i].Survived = i < survivFrom
	}
	return out
}

// AdaptiveBenjaminiHochberg2000 estimates m' from the first rank where the
// per-rank slope sᵢ = (1-p₍ᵢ₎)/(m+1-i) decreases, then runs the BH
// critical-value scan using m' in place of m.
func AdaptiveBenjaminiHochberg2000(results []Result, fdr float64) []Result {
	out := sortedByPValue(results)
	m := len(out)
	if m == 0 {
		return out
	}

	slopes := make([]float64, m)
	for i := 0; i < m; i++ {
		rank := float64(i + 1)
		slopes[i] = (1 - out[i].PValue) / (float64(m) + 1 - rank)
	}

	mPrime := float64(m)
	for i := 1; i < len(slopes); i++ {
		if slopes[i] < slopes[i-1] {
			candidate := (1 / slopes[i]) + 1
			if candidate < mPrime {
				mPrime = candidate
			}
			break
		}
	}

	survivFrom := 0
	for rank := m; rank >= 1; rank-- {
		critical := (float64(rank) / mPrime) * fdr
		if out[rank-1].PValue <= critical {
			survivFrom = rank
			break
		}
	}
	for i := range out {
		out[i].Survived = i < survivFrom
	}
	return out
}

// Unadjusted keeps every strategy whose raw p-value is below threshold,
// performing no correction at all.
func Unadjusted(results []Result, threshold float64) []Result {
	out := append([]Result(nil), results...)
	for i := range out {
		out[i].Survived = out[i].PValue < threshold
	}
	return out
}

// buildEmpiricalNull sorts ascending either a caller-supplied synthetic
// null distribution or, absent one, the container's own MaxStat column.
func buildEmpiricalNull(results []Result, syntheticNull []float64) ([]float64, bool) {
	if len(results) == 0 {
		return nil, false
	}
	var null []float64
	if syntheticNull != nil {
		null = append([]float64(nil), syntheticNull...)
	} else {
		null = make([]float64, len(results))
		for i, r := range results {
			null[i] = r.MaxStat
		}
	}
	sort.Float64s(null)
	return null, len(null) > 0
}

// empiricalPValue is the fraction of the sorted null distribution at
// least as extreme as observed, via a lower-bound search matching the
// teacher's std::lower_bound-based count.
func empiricalPValue(sortedNull []float64, observed float64) float64 {
	idx := sort.Search(len(sortedNull), func(i int) bool { return sortedNull[i] >= observed })
	countGE := len(sortedNull) - idx
	return float64(countGE) / float64(len(sortedNull))
}

// RomanoWolfStepDown performs the reverse step-down walk: sort ascending
// by original p-value, build the empirical null, then for each strategy
// from last to first compute candidate = empiricalP·(m/(i+1)) and enforce
// adjusted = min(candidate, adjusted[i+1]) with adjusted[m] seeded to 1.0.
func RomanoWolfStepDown(results []Result, syntheticNull []float64) []Result {
	out := sortedByPValue(results)
	null, ok := buildEmpiricalNull(out, syntheticNull)
	if !ok {
		return out
	}
	m := len(out)

	previous := 1.0
	for i := m - 1; i >= 0; i-- {
		empP := empiricalPValue(null, out[i].MaxStat)
		candidate := empP * (float64(m) / float64(i+1))
		adjusted := candidate
		if i != m-1 {
			adjusted = min(previous, candidate)
		}
		out[i].AdjustedPValue = adjusted
		previous = adjusted
	}
	for i := range out {
		out[i].Survived = out[i].AdjustedPValue < SignificantPValue
	}
	return out
}

// HolmRomanoWolf performs the forward step-up walk: candidate =
// empiricalP·(m−i), adjusted = max(candidate, adjusted[i−1]), seeded to
// 0.0 at i=0.
func HolmRomanoWolf(results []Result, syntheticNull []float64) []Result {
	out := sortedByPValue(results)
	null, ok := buildEmpiricalNull(out, syntheticNull)
	if !ok {
		return out
	}
	m := len(out)

	previous := 0.0
	for i := 0; i < m; i++ {
		empP := empiricalPValue(null, out[i].MaxStat)
		candidate := empP * float64(m-i)
		adjusted := candidate
		if i != 0 {
			adjusted = max(previous, candidate)
		}
		out[i].AdjustedPValue = adjusted
		previous = adjusted
	}
	for i := range out {
		out[i].Survived = out[i].AdjustedPValue < SignificantPValue
	}
	return out
}
