// Package palio implements the CSV input/output formats the core accepts
// and emits. Grounded on spec.md §6 and
// original_source/libs/timeseries/TimeSeriesCsvReader.h /
// TimeSeriesCsvWriter.h / TimeSeriesFormatters.h, reworked onto Go's
// encoding/csv the way haideralmesaody-ISXPulse's exporter package reads
// and writes its CSV reports: buffered readers/writers over an io.Reader/
// io.Writer rather than a file path, so callers choose their own I/O.
//
// Every reader except the two TradeStation readers rounds loaded prices to
// a caller-supplied tick before returning; ReadTradeStationEOD and
// ReadTradeStationIntraday take no tick and return prices as parsed. Every
// writer takes a line-ending selector so both Unix
// and Windows targets are reachable from the same formatter.
package palio

import (
	"fmt"

	"github.com/palvalidator/core/decimal"
)

// FormatError reports a CSV row with the wrong column count for its format.
type FormatError struct {
	Format string
	Line   int
	Want   int
	Got    int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("palio: %s line %d: want %d columns, got %d", e.Format, e.Line, e.Want, e.Got)
}

// LineEnding selects a writer's end-of-line sequence.
type LineEnding string

const (
	Unix    LineEnding = "\n"
	Windows LineEnding = "\r\n"
)

// parseScale is the working precision prices are parsed at before being
// rounded down to a security's tick; wide enough that no documented input
// format's fractional digits are truncated during the parse step itself.
const parseScale = 8

func parsePrice(s string) (decimal.Decimal, error) {
	return decimal.Parse(s, parseScale)
}

// tickHalf computes tick/2 for a standalone tick value, mirroring the
// cached tickHalf a timeseries.Security carries internally.
func tickHalf(tick decimal.Decimal) (decimal.Decimal, error) {
	two := decimal.FromInt(2, tick.Scale()+1)
	return tick.Div(two, decimal.HalfAwayFromZero)
}

func roundToTick(price, tick decimal.Decimal) (decimal.Decimal, error) {
	half, err := tickHalf(tick)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.RoundToTick(price, tick, half)
}
