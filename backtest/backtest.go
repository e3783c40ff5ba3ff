// Package backtest implements the day-by-day simulation loop of spec.md's
// C8, tying the pattern evaluator (C4) and order/position ledger (C7) to
// the OHLC series (C2). Grounded on
// original_source/libs/timeserieslib/BackTester.h (the range-stepping
// outer loop) and PalStrategy.h (per-security entry/exit event dispatch).
package backtest

import (
	"time"

	"github.com/palvalidator/core/broker"
	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/pattern"
	"github.com/palvalidator/core/timeseries"
	"github.com/pkg/errors"
)

// ErrMalformedPattern is fatal to a backtest run: a pattern or series
// contract violation (as opposed to the benign "no data today" case).
var ErrMalformedPattern = errors.New("backtest: malformed pattern or series contract violation")

// DateRange bounds one simulation segment, inclusive on both ends.
type DateRange struct {
	Start, End time.Time
}

// Strategy binds one portfolio, one pattern set, and one ledger together.
// Patterns are evaluated in slice order; the first one that fires (subject
// to pyramiding rules) wins for a given symbol on a given bar.
type Strategy struct {
	Name      string
	Portfolio *timeseries.Portfolio
	Patterns  []*pattern.Pattern
	Volume    decimal.Decimal
	Broker    *broker.Broker

	barsProcessed map[string]int
}

// NewStrategy constructs a strategy with a fresh ledger.
func NewStrategy(name string, portfolio *timeseries.Portfolio, patterns []*pattern.Pattern, volume decimal.Decimal, pyramiding bool) *Strategy {
	return &Strategy{
		Name:          name,
		Portfolio:     portfolio,
		Patterns:      patterns,
		Volume:        volume,
		Broker:        broker.NewBroker(pyramiding),
		barsProcessed: make(map[string]int),
	}
}

// hasData reports whether symbol's series has a bar exactly at date.
func (s *Strategy) hasData(symbol string, date time.Time) bool {
	sec := s.Portfolio.Security(symbol)
	if sec == nil {
		return false
	}
	_, ok := sec.Series.Find(date)
	return ok
}

// eventEntryOrders evaluates this strategy's patterns for symbol at
// orderDate, submitting a market-on-open entry for the first pattern that
// fires. Flat symbols accept either direction; symbols already Open only
// accept a same-direction pyramid when the ledger allows it.
func (s *Strategy) eventEntryOrders(symbol string, orderDate time.Time) error {
	sec := s.Portfolio.Security(symbol)
	it, err := sec.Series.BeginRandomAccess(orderDate)
	if err != nil {
		return errors.Wrapf(ErrMalformedPattern, "symbol %s: %v", symbol, err)
	}
	processed := s.barsProcessed[symbol]
	openDir, hasOpen := s.Broker.OpenDirection(symbol)

	for _, p := range s.Patterns {
		if !p.CanFireAt(processed) {
			continue
		}
		if hasOpen {
			if p.Direction != openDir || !s.Broker.CanPyramid(symbol, p.Direction) {
				continue
			}
		}
		fired, err := p.Eval(sec, it)
		if err != nil {
			if errors.Is(err, pattern.ErrInsufficientHistory) {
				continue
			}
			return errors.Wrapf(ErrMalformedPattern, "pattern %s on %s: %v", p.Name, symbol, err)
		}
		if !fired {
			continue
		}
		if _, err := s.Broker.SubmitMarketEntry(symbol, p.Direction, orderDate, s.Volume, processed, p.ProfitTargetPct, p.StopLossPct); err != nil {
			return err
		}
		return nil
	}
	return nil
}

// Backtester drives one or more strategies forward across one or more date
// ranges, stepping one bar at a time per spec.md §4.8's pseudocode.
type Backtester struct {
	strategies []*Strategy
	ranges     []DateRange
}

// New constructs a backtester over the given date ranges.
func New(ranges []DateRange) *Backtester {
	return &Backtester{ranges: ranges}
}

// AddStrategy registers a strategy to be driven by Run.
func (bt *Backtester) AddStrategy(s *Strategy) {
	bt.strategies = append(bt.strategies, s)
}

// buildDateVector derives the simulation's date vector from the union of
// all strategies' portfolio securities' own bar timestamps within the
// range. Real OHLC data already excludes non-trading days, so deriving
// dates from the data supersedes the original's "generate a calendar and
// skip weekends" approach.
func (bt *Backtester) buildDateVector(r DateRange) []time.Time {
	seen := make(map[int64]bool)
	var dates []time.Time
	for _, s := range bt.strategies {
		for _, symbol := range s.Portfolio.Symbols() {
			sec := s.Portfolio.Security(symbol)
			filtered, err := sec.Series.Filter(r.Start, r.End)
			if err != nil {
				continue
			}
			for _, b := range filtered.Bars() {
				key := b.Timestamp.UnixNano()
				if !seen[key] {
					seen[key] = true
					dates = append(dates, b.Timestamp)
				}
			}
		}
	}
	sortTimes(dates)
	return dates
}

func sortTimes(dates []time.Time) {
	for i := 1; i < len(dates); i++ {
		for j := i; j > 0 && dates[j].Before(dates[j-1]); j-- {
			dates[j], dates[j-1] = dates[j-1], dates[j]
		}
	}
}

// Run executes the full simulation across all configured date ranges. On
// a multi-range backtest, every open position is force-exited at the last
// bar of every range but the final one.
func (bt *Backtester) Run() error {
	for rangeIdx, r := range bt.ranges {
		dates := bt.buildDateVector(r)
		if len(dates) < 2 {
			continue
		}
		for i := 1; i < len(dates); i++ {
			current := dates[i]
			orderDate := dates[i-1]
			for _, s := range bt.strategies {
				for _, symbol := range s.Portfolio.Symbols() {
					sec := s.Portfolio.Security(symbol)
					if s.hasData(symbol, orderDate) {
						s.barsProcessed[symbol]++
						if err := s.eventEntryOrders(symbol, orderDate); err != nil {
							return err
						}
					}
					if bar, ok := sec.Series.Find(current); ok {
						barIdx := sec.Series.IndexOf(current)
						if _, err := s.Broker.ProcessPendingOrders(symbol, bar, barIdx, sec); err != nil {
							return err
						}
					}
				}
			}
		}
		if rangeIdx < len(bt.ranges)-1 {
			lastDate := dates[len(dates)-1]
			for _, s := range bt.strategies {
				for _, symbol := range s.Portfolio.Symbols() {
					sec := s.Portfolio.Security(symbol)
					bar, ok := sec.Series.Find(lastDate)
					if !ok {
						continue
					}
					barIdx := sec.Series.IndexOf(lastDate)
					if err := s.Broker.ForceExit(symbol, lastDate, bar.Close, barIdx); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
