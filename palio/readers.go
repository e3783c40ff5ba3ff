package palio

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/timeseries"
	"github.com/pkg/errors"
)

const palEODDateLayout = "20060102"
const tradeStationDateLayout = "01/02/2006"
const tradeStationTimeLayout = "15:04"

// ReadPALEOD parses the no-header `YYYYMMDD,open,high,low,close` format.
// Only daily/weekly/monthly timeframes are valid for this format; callers
// requesting Intraday get ErrContractViolation, matching
// PALFormatCsvReader's "does not support intraday" guard.
func ReadPALEOD(r io.Reader, timeframe timeseries.Timeframe, tick decimal.Decimal) ([]timeseries.Bar, error) {
	if timeframe == timeseries.Intraday {
		return nil, errors.Wrap(timeseries.ErrContractViolation, "palio: PAL EOD format does not support intraday timeframe")
	}
	scanner := bufio.NewScanner(r)
	var bars []timeseries.Bar
	line := 0
	for scanner.Scan() {
		line++
		row := strings.TrimSpace(scanner.Text())
		if row == "" {
			continue
		}
		fields := strings.Split(row, ",")
		if len(fields) != 5 {
			return nil, &FormatError{Format: "PAL EOD", Line: line, Want: 5, Got: len(fields)}
		}
		ts, err := time.Parse(palEODDateLayout, fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "palio: PAL EOD line %d: date %q", line, fields[0])
		}
		bar, err := buildBar(ts, fields[1], fields[2], fields[3], fields[4], "0", tick, timeframe)
		if err != nil {
			return nil, errors.Wrapf(err, "palio: PAL EOD line %d", line)
		}
		bars = append(bars, bar)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "palio: PAL EOD scan")
	}
	return bars, nil
}

// ReadPALIntraday parses the space-separated `seq open high low close`
// format. The sequential counter (starting at 10,000,001, per the
// writer's convention) carries no wall-clock meaning; it is used here only
// to derive a strictly-increasing synthetic timestamp, one second per
// sequence number starting at the Unix epoch, so the resulting bars still
// satisfy OHLCSeries's strictly-increasing-timestamp invariant.
func ReadPALIntraday(r io.Reader, tick decimal.Decimal) ([]timeseries.Bar, error) {
	scanner := bufio.NewScanner(r)
	var bars []timeseries.Bar
	line := 0
	for scanner.Scan() {
		line++
		row := strings.TrimSpace(scanner.Text())
		if row == "" {
			continue
		}
		fields := strings.Fields(row)
		if len(fields) != 5 {
			return nil, &FormatError{Format: "PAL intraday", Line: line, Want: 5, Got: len(fields)}
		}
		seq, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "palio: PAL intraday line %d: sequence %q", line, fields[0])
		}
		ts := time.Unix(seq, 0).UTC()
		bar, err := buildBar(ts, fields[1], fields[2], fields[3], fields[4], "0", tick, timeseries.Intraday)
		if err != nil {
			return nil, errors.Wrapf(err, "palio: PAL intraday line %d", line)
		}
		bars = append(bars, bar)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "palio: PAL intraday scan")
	}
	return bars, nil
}

// ReadPALVolumeForClose parses `YYYYMMDD,open,high,low,volume`. This format
// never carried a close price (it exists to smuggle a volume column
// through tools expecting PAL's five-column shape), so there is no close
// value to round-trip; Close is set equal to Open, which trivially
// satisfies the OHLC invariant without inventing a price the source data
// never recorded.
func ReadPALVolumeForClose(r io.Reader, timeframe timeseries.Timeframe, tick decimal.Decimal) ([]timeseries.Bar, error) {
	scanner := bufio.NewScanner(r)
	var bars []timeseries.Bar
	line := 0
	for scanner.Scan() {
		line++
		row := strings.TrimSpace(scanner.Text())
		if row == "" {
			continue
		}
		fields := strings.Split(row, ",")
		if len(fields) != 5 {
			return nil, &FormatError{Format: "PAL volume-for-close", Line: line, Want: 5, Got: len(fields)}
		}
		ts, err := time.Parse(palEODDateLayout, fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "palio: PAL volume-for-close line %d: date %q", line, fields[0])
		}
		bar, err := buildBar(ts, fields[1], fields[2], fields[3], fields[1], fields[4], tick, timeframe)
		if err != nil {
			return nil, errors.Wrapf(err, "palio: PAL volume-for-close line %d", line)
		}
		bars = append(bars, bar)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "palio: PAL volume-for-close scan")
	}
	return bars, nil
}

// ReadTradeStationEOD parses the quoted `"Date","Time","Open","High",
// "Low","Close","Vol","OI"` header format with MM/dd/yyyy dates.
func ReadTradeStationEOD(r io.Reader) ([]timeseries.Bar, error) {
	return readTradeStation(r, "TradeStation EOD", timeseries.Daily, false)
}

// ReadTradeStationIntraday parses the same layout with `"Up","Down"` in
// place of `"Vol","OI"` and an HH:MM time column that contributes to the
// bar's timestamp.
func ReadTradeStationIntraday(r io.Reader) ([]timeseries.Bar, error) {
	return readTradeStation(r, "TradeStation intraday", timeseries.Intraday, true)
}

func readTradeStation(r io.Reader, format string, timeframe timeseries.Timeframe, useTime bool) ([]timeseries.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "palio: %s: read header", format)
	}
	if len(header) != 8 {
		return nil, &FormatError{Format: format, Line: 1, Want: 8, Got: len(header)}
	}

	var bars []timeseries.Bar
	line := 1
	for {
		line++
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "palio: %s line %d", format, line)
		}
		if len(row) != 8 {
			return nil, &FormatError{Format: format, Line: line, Want: 8, Got: len(row)}
		}
		date, err := time.Parse(tradeStationDateLayout, row[0])
		if err != nil {
			return nil, errors.Wrapf(err, "palio: %s line %d: date %q", format, line, row[0])
		}
		ts := date
		if useTime {
			tod, err := time.Parse(tradeStationTimeLayout, row[1])
			if err != nil {
				return nil, errors.Wrapf(err, "palio: %s line %d: time %q", format, line, row[1])
			}
			ts = time.Date(date.Year(), date.Month(), date.Day(), tod.Hour(), tod.Minute(), 0, 0, time.UTC)
		}
		volume := row[6]
		open, high, low, close := row[2], row[3], row[4], row[5]
		bar, err := buildBarUnrounded(ts, open, high, low, close, volume, timeframe)
		if err != nil {
			return nil, errors.Wrapf(err, "palio: %s line %d", format, line)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// ReadCSIExtendedFutures parses the no-header
// `Date,Open,High,Low,Close,Vol,OI,RollDate,UnAdjClose` format. RollDate
// and UnAdjClose are read but not surfaced; the core has no field for
// either, matching spec.md's read-only-without-a-writer-target note.
func ReadCSIExtendedFutures(r io.Reader, timeframe timeseries.Timeframe, tick decimal.Decimal) ([]timeseries.Bar, error) {
	scanner := bufio.NewScanner(r)
	var bars []timeseries.Bar
	line := 0
	for scanner.Scan() {
		line++
		row := strings.TrimSpace(scanner.Text())
		if row == "" {
			continue
		}
		fields := strings.Split(row, ",")
		if len(fields) != 9 {
			return nil, &FormatError{Format: "CSI extended futures", Line: line, Want: 9, Got: len(fields)}
		}
		ts, err := time.Parse(palEODDateLayout, fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "palio: CSI extended futures line %d: date %q", line, fields[0])
		}
		bar, err := buildBar(ts, fields[1], fields[2], fields[3], fields[4], fields[5], tick, timeframe)
		if err != nil {
			return nil, errors.Wrapf(err, "palio: CSI extended futures line %d", line)
		}
		bars = append(bars, bar)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "palio: CSI extended futures scan")
	}
	return bars, nil
}

// ReadWealthLab parses the `Date/Time,Open,High,Low,Close,Volume` header
// format with US-style M/D/YYYY[ HH:MM[:SS]] timestamps; the time portion
// is only consulted for an Intraday timeframe.
func ReadWealthLab(r io.Reader, timeframe timeseries.Timeframe, tick decimal.Decimal) ([]timeseries.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "palio: Wealth-Lab: read header")
	}
	if len(header) != 6 {
		return nil, &FormatError{Format: "Wealth-Lab", Line: 1, Want: 6, Got: len(header)}
	}

	var bars []timeseries.Bar
	line := 1
	for {
		line++
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "palio: Wealth-Lab line %d", line)
		}
		if len(row) != 6 {
			return nil, &FormatError{Format: "Wealth-Lab", Line: line, Want: 6, Got: len(row)}
		}
		datePart, timePart, _ := strings.Cut(row[0], " ")
		ts, err := parseUSDate(datePart)
		if err != nil {
			return nil, errors.Wrapf(err, "palio: Wealth-Lab line %d: date %q", line, row[0])
		}
		if timeframe == timeseries.Intraday && timePart != "" {
			tod, err := parseClockTime(timePart)
			if err != nil {
				return nil, errors.Wrapf(err, "palio: Wealth-Lab line %d: time %q", line, timePart)
			}
			ts = time.Date(ts.Year(), ts.Month(), ts.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, time.UTC)
		}
		bar, err := buildBar(ts, row[1], row[2], row[3], row[4], row[5], tick, timeframe)
		if err != nil {
			return nil, errors.Wrapf(err, "palio: Wealth-Lab line %d", line)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseUSDate(s string) (time.Time, error) {
	for _, layout := range []string{"1/2/2006", "01/02/2006"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.Errorf("invalid US date %q", s)
}

func parseClockTime(s string) (time.Time, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.Errorf("invalid time %q", s)
}

// buildBar parses OHLCV strings, rounds OHLC to tick, and assembles a Bar.
func buildBar(ts time.Time, openS, highS, lowS, closeS, volumeS string, tick decimal.Decimal, timeframe timeseries.Timeframe) (timeseries.Bar, error) {
	open, err := roundedPrice(openS, tick)
	if err != nil {
		return timeseries.Bar{}, errors.Wrap(err, "open")
	}
	high, err := roundedPrice(highS, tick)
	if err != nil {
		return timeseries.Bar{}, errors.Wrap(err, "high")
	}
	low, err := roundedPrice(lowS, tick)
	if err != nil {
		return timeseries.Bar{}, errors.Wrap(err, "low")
	}
	closeP, err := roundedPrice(closeS, tick)
	if err != nil {
		return timeseries.Bar{}, errors.Wrap(err, "close")
	}
	volume, err := parsePrice(volumeS)
	if err != nil {
		return timeseries.Bar{}, errors.Wrap(err, "volume")
	}
	return timeseries.Bar{
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closeP,
		Volume:    volume,
		Timeframe: timeframe,
	}, nil
}

// buildBarUnrounded is buildBar without tick rounding, for formats
// (TradeStation) whose original reader never rounds on load.
func buildBarUnrounded(ts time.Time, openS, highS, lowS, closeS, volumeS string, timeframe timeseries.Timeframe) (timeseries.Bar, error) {
	open, err := parsePrice(openS)
	if err != nil {
		return timeseries.Bar{}, errors.Wrap(err, "open")
	}
	high, err := parsePrice(highS)
	if err != nil {
		return timeseries.Bar{}, errors.Wrap(err, "high")
	}
	low, err := parsePrice(lowS)
	if err != nil {
		return timeseries.Bar{}, errors.Wrap(err, "low")
	}
	closeP, err := parsePrice(closeS)
	if err != nil {
		return timeseries.Bar{}, errors.Wrap(err, "close")
	}
	volume, err := parsePrice(volumeS)
	if err != nil {
		return timeseries.Bar{}, errors.Wrap(err, "volume")
	}
	return timeseries.Bar{
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closeP,
		Volume:    volume,
		Timeframe: timeframe,
	}, nil
}

func roundedPrice(s string, tick decimal.Decimal) (decimal.Decimal, error) {
	p, err := parsePrice(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return roundToTick(p, tick)
}
