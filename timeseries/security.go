package timeseries

import (
	"github.com/palvalidator/core/decimal"
	"github.com/pkg/errors"
)

// SecurityKind distinguishes contract economics between equities and futures.
type SecurityKind int

const (
	Equity SecurityKind = iota
	Futures
)

// Security owns a price series plus instrument properties. Equities default
// tick=0.01 and big-point-value=1; futures carry explicit values. tick/2 is
// cached on construction to serve decimal.RoundToTick without recomputing it
// on every bar, mirroring the original's Security caching the same value.
type Security struct {
	Symbol        string
	Name          string
	BigPointValue decimal.Decimal
	Tick          decimal.Decimal
	tickHalf      decimal.Decimal
	Kind          SecurityKind
	Series        *OHLCSeries
}

// NewEquity constructs an equity security (tick 0.01, big-point-value 1).
func NewEquity(symbol, name string, series *OHLCSeries) (*Security, error) {
	tick := decimal.MustParse("0.01", 2)
	bpv := decimal.FromInt(1, 2)
	return newSecurity(symbol, name, bpv, tick, Equity, series)
}

// NewFutures constructs a futures security with explicit tick and
// big-point-value (contract multiplier).
func NewFutures(symbol, name string, bigPointValue, tick decimal.Decimal, series *OHLCSeries) (*Security, error) {
	return newSecurity(symbol, name, bigPointValue, tick, Futures, series)
}

func newSecurity(symbol, name string, bigPointValue, tick decimal.Decimal, kind SecurityKind, series *OHLCSeries) (*Security, error) {
	if symbol == "" {
		return nil, errors.Wrap(ErrContractViolation, "security: symbol must not be empty")
	}
	if !tick.IsPositive() {
		return nil, errors.Wrap(ErrContractViolation, "security: tick must be > 0")
	}
	two := decimal.FromInt(2, tick.Scale()+1)
	tickHalf, err := tick.Div(two, decimal.HalfAwayFromZero)
	if err != nil {
		return nil, errors.Wrap(err, "security: compute tick/2")
	}
	return &Security{
		Symbol:        symbol,
		Name:          name,
		BigPointValue: bigPointValue,
		Tick:          tick,
		tickHalf:      tickHalf,
		Kind:          kind,
		Series:        series,
	}, nil
}

// TickHalf returns the cached tick/2 used for round-to-tick.
func (s *Security) TickHalf() decimal.Decimal { return s.tickHalf }

// RoundToTick rounds a price to this security's tick.
func (s *Security) RoundToTick(price decimal.Decimal) (decimal.Decimal, error) {
	return decimal.RoundToTick(price, s.Tick, s.tickHalf)
}

// Clone returns a shallow copy of the security sharing the same immutable
// series pointer but an independently mutable struct — used when a Monte
// Carlo worker swaps in a synthetic series for its own clone (spec.md §5:
// "Each worker owns ... one cloned portfolio").
func (s *Security) Clone() *Security {
	clone := *s
	return &clone
}

// WithSeries returns a new clone of the security pointing at a different
// series, leaving the receiver unchanged; the synthetic-series cache calls
// it once per permutation draw.
func (s *Security) WithSeries(series *OHLCSeries) *Security {
	clone := s.Clone()
	clone.Series = series
	return clone
}
