package timeseries

import (
	"sort"
	"time"

	"github.com/palvalidator/core/decimal"
	"github.com/pkg/errors"
)

// OHLCSeries is an ordered, strictly-increasing-by-timestamp sequence of
// bars sharing one Timeframe and one VolumeUnit.
type OHLCSeries struct {
	timeframe  Timeframe
	volumeUnit VolumeUnit
	bars       []Bar
}

// New constructs an empty series for the given timeframe/volume unit.
func New(timeframe Timeframe, volumeUnit VolumeUnit) *OHLCSeries {
	return &OHLCSeries{timeframe: timeframe, volumeUnit: volumeUnit}
}

// NewFromSortedBars bulk-loads a series whose bars are already known to be
// sorted in strictly increasing timestamp order, skipping the insertion
// search spec.md's "bulk load" path is offered for. Bar invariants are
// still validated.
func NewFromSortedBars(timeframe Timeframe, volumeUnit VolumeUnit, bars []Bar) (*OHLCSeries, error) {
	s := &OHLCSeries{timeframe: timeframe, volumeUnit: volumeUnit, bars: make([]Bar, 0, len(bars))}
	var prev time.Time
	for i, b := range bars {
		if b.Timeframe != timeframe {
			return nil, errors.Wrapf(ErrContractViolation, "bar %d: timeframe mismatch", i)
		}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if i > 0 && !b.Timestamp.After(prev) {
			return nil, errors.Wrapf(ErrContractViolation, "bar %d: timestamps must be strictly increasing", i)
		}
		prev = b.Timestamp
		s.bars = append(s.bars, b)
	}
	return s, nil
}

// Timeframe returns the series' shared timeframe.
func (s *OHLCSeries) Timeframe() Timeframe { return s.timeframe }

// VolumeUnit returns the series' shared volume unit.
func (s *OHLCSeries) VolumeUnit() VolumeUnit { return s.volumeUnit }

// Len returns the number of bars.
func (s *OHLCSeries) Len() int { return len(s.bars) }

// Bars returns the underlying bar slice. Callers must not mutate it.
func (s *OHLCSeries) Bars() []Bar { return s.bars }

// Add inserts a bar maintaining timestamp order. Fails on duplicate
// timestamp or timeframe mismatch.
func (s *OHLCSeries) Add(b Bar) error {
	if b.Timeframe != s.timeframe {
		return errors.Wrapf(ErrContractViolation, "add: timeframe mismatch (series=%s, bar=%s)", s.timeframe, b.Timeframe)
	}
	if err := b.Validate(); err != nil {
		return err
	}
	idx := sort.Search(len(s.bars), func(i int) bool {
		return !s.bars[i].Timestamp.Before(b.Timestamp)
	})
	if idx < len(s.bars) && s.bars[idx].Timestamp.Equal(b.Timestamp) {
		return errors.Wrapf(ErrContractViolation, "add: duplicate timestamp %s", b.Timestamp)
	}
	s.bars = append(s.bars, Bar{})
	copy(s.bars[idx+1:], s.bars[idx:])
	s.bars[idx] = b
	return nil
}

// Find looks up a bar by timestamp via binary search. ok is false when
// absent (the "sentinel-end" of spec.md).
func (s *OHLCSeries) Find(ts time.Time) (Bar, bool) {
	idx := sort.Search(len(s.bars), func(i int) bool {
		return !s.bars[i].Timestamp.Before(ts)
	})
	if idx < len(s.bars) && s.bars[idx].Timestamp.Equal(ts) {
		return s.bars[idx], true
	}
	return Bar{}, false
}

// IndexOf returns the index of the bar at ts, or -1 when absent.
func (s *OHLCSeries) IndexOf(ts time.Time) int {
	idx := sort.Search(len(s.bars), func(i int) bool {
		return !s.bars[i].Timestamp.Before(ts)
	})
	if idx < len(s.bars) && s.bars[idx].Timestamp.Equal(ts) {
		return idx
	}
	return -1
}

// RandomAccessIterator supports "offset = n bars ago" lookups from a
// chosen starting index, per spec.md's "iter-random-access(start).offset(k)".
type RandomAccessIterator struct {
	series *OHLCSeries
	start  int
}

// BeginRandomAccess returns an iterator anchored at the bar with the given
// timestamp. Fails if the timestamp is not present.
func (s *OHLCSeries) BeginRandomAccess(ts time.Time) (RandomAccessIterator, error) {
	idx := s.IndexOf(ts)
	if idx < 0 {
		return RandomAccessIterator{}, errors.Wrapf(ErrContractViolation, "begin-random-access: timestamp %s not found", ts)
	}
	return RandomAccessIterator{series: s, start: idx}, nil
}

// BeginRandomAccessAt anchors an iterator at a raw bar index (0-based from
// the start of the series), used by the backtester which walks bars by
// position rather than by timestamp lookup.
func (s *OHLCSeries) BeginRandomAccessAt(index int) (RandomAccessIterator, error) {
	if index < 0 || index >= len(s.bars) {
		return RandomAccessIterator{}, errors.Wrapf(ErrContractViolation, "begin-random-access-at: index %d out of range", index)
	}
	return RandomAccessIterator{series: s, start: index}, nil
}

// Offset returns the bar k positions before the anchor ("k-th predecessor").
// Offset(0) returns the anchor bar itself. Fails if out of range.
func (it RandomAccessIterator) Offset(k int) (Bar, error) {
	idx := it.start - k
	if idx < 0 || idx >= len(it.series.bars) {
		return Bar{}, errors.Wrapf(ErrContractViolation, "offset %d out of range (start=%d, len=%d)", k, it.start, len(it.series.bars))
	}
	return it.series.bars[idx], nil
}

// Index returns the anchor's raw position in the series.
func (it RandomAccessIterator) Index() int { return it.start }

// HasOffset reports whether Offset(k) would succeed, without allocating an error.
func (it RandomAccessIterator) HasOffset(k int) bool {
	idx := it.start - k
	return idx >= 0 && idx < len(it.series.bars)
}

// SingleValueSeries is a derived decimal series sharing timestamps with its
// source OHLC series (e.g. the close-only view used by most indicators).
type SingleValueSeries struct {
	Timestamps []time.Time
	Values     []decimal.Decimal
}

func (s *OHLCSeries) derive(pick func(Bar) decimal.Decimal) SingleValueSeries {
	out := SingleValueSeries{
		Timestamps: make([]time.Time, len(s.bars)),
		Values:     make([]decimal.Decimal, len(s.bars)),
	}
	for i, b := range s.bars {
		out.Timestamps[i] = b.Timestamp
		out.Values[i] = pick(b)
	}
	return out
}

// DerivedOpen returns the open-price single-value series.
func (s *OHLCSeries) DerivedOpen() SingleValueSeries { return s.derive(func(b Bar) decimal.Decimal { return b.Open }) }

// DerivedHigh returns the high-price single-value series.
func (s *OHLCSeries) DerivedHigh() SingleValueSeries { return s.derive(func(b Bar) decimal.Decimal { return b.High }) }

// DerivedLow returns the low-price single-value series.
func (s *OHLCSeries) DerivedLow() SingleValueSeries { return s.derive(func(b Bar) decimal.Decimal { return b.Low }) }

// DerivedClose returns the close-price single-value series.
func (s *OHLCSeries) DerivedClose() SingleValueSeries {
	return s.derive(func(b Bar) decimal.Decimal { return b.Close })
}

// Filter returns a new series whose bars fall within [from, to] inclusive.
// Fails if the range starts before the source's first date.
func (s *OHLCSeries) Filter(from, to time.Time) (*OHLCSeries, error) {
	if len(s.bars) == 0 {
		return nil, errors.Wrap(ErrContractViolation, "filter: series is empty")
	}
	if from.Before(s.bars[0].Timestamp) {
		return nil, errors.Wrapf(ErrContractViolation, "filter: range start %s precedes series start %s", from, s.bars[0].Timestamp)
	}
	out := New(s.timeframe, s.volumeUnit)
	for _, b := range s.bars {
		if (b.Timestamp.After(from) || b.Timestamp.Equal(from)) && (b.Timestamp.Before(to) || b.Timestamp.Equal(to)) {
			out.bars = append(out.bars, b)
		}
	}
	return out, nil
}

// Equal compares two series by (timeframe, volume-unit, size, per-bar equality).
func (s *OHLCSeries) Equal(other *OHLCSeries) bool {
	if other == nil {
		return false
	}
	if s.timeframe != other.timeframe || s.volumeUnit != other.volumeUnit || len(s.bars) != len(other.bars) {
		return false
	}
	for i := range s.bars {
		if !s.bars[i].Equal(other.bars[i]) {
			return false
		}
	}
	return true
}
