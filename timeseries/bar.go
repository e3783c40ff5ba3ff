// Package timeseries implements ordered OHLC bar series, securities, and
// portfolios (spec component C2), grounded on the original validator's
// OHLCTimeSeries (original_source/libs/timeseries/TimeSeries.h) but
// re-architected per spec.md's "binary-search-over-vector replaces the
// source's dual map+array index" design note, in the style of the teacher's
// internal/domain value types (vadiminshakov/marti: Kline, Position).
package timeseries

import (
	"time"

	"github.com/palvalidator/core/decimal"
	"github.com/pkg/errors"
)

// Timeframe identifies the bar period of a series.
type Timeframe int

const (
	Intraday Timeframe = iota
	Daily
	Weekly
	Monthly
	Quarterly
	Yearly
)

func (t Timeframe) String() string {
	switch t {
	case Intraday:
		return "intraday"
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	case Quarterly:
		return "quarterly"
	case Yearly:
		return "yearly"
	default:
		return "unknown"
	}
}

// VolumeUnit identifies what a bar's Volume field counts.
type VolumeUnit int

const (
	Shares VolumeUnit = iota
	Contracts
)

// ErrContractViolation wraps any bar/series invariant violation so callers
// can distinguish a programming-contract failure from recoverable data gaps
// (spec.md §7 error-kind taxonomy).
var ErrContractViolation = errors.New("timeseries: contract violation")

// Bar is one OHLCV price observation.
type Bar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	Timeframe Timeframe
}

// Validate checks the OHLC and positivity invariants from spec.md §3.
func (b Bar) Validate() error {
	if !b.Open.IsPositive() || !b.High.IsPositive() || !b.Low.IsPositive() || !b.Close.IsPositive() {
		return errors.Wrapf(ErrContractViolation, "bar %s: all prices must be > 0", b.Timestamp)
	}
	maxOCL := maxDecimal(b.Open, b.Close, b.Low)
	if b.High.LessThan(maxOCL) {
		return errors.Wrapf(ErrContractViolation, "bar %s: high %s < max(open,close,low) %s", b.Timestamp, b.High, maxOCL)
	}
	minOCH := minDecimal(b.Open, b.Close, b.High)
	if b.Low.GreaterThan(minOCH) {
		return errors.Wrapf(ErrContractViolation, "bar %s: low %s > min(open,close,high) %s", b.Timestamp, b.Low, minOCH)
	}
	if b.Volume.IsNegative() {
		return errors.Wrapf(ErrContractViolation, "bar %s: volume must be >= 0", b.Timestamp)
	}
	return nil
}

func maxDecimal(vals ...decimal.Decimal) decimal.Decimal {
	m := vals[0]
	for _, v := range vals[1:] {
		if v.GreaterThan(m) {
			m = v
		}
	}
	return m
}

func minDecimal(vals ...decimal.Decimal) decimal.Decimal {
	m := vals[0]
	for _, v := range vals[1:] {
		if v.LessThan(m) {
			m = v
		}
	}
	return m
}

// Equal compares two bars field-by-field.
func (b Bar) Equal(other Bar) bool {
	return b.Timestamp.Equal(other.Timestamp) &&
		b.Open.Equal(other.Open) &&
		b.High.Equal(other.High) &&
		b.Low.Equal(other.Low) &&
		b.Close.Equal(other.Close) &&
		b.Volume.Equal(other.Volume) &&
		b.Timeframe == other.Timeframe
}
