// Package diagnostics adapts the cinar/indicator/v2 technical-analysis
// library onto the core's own OHLC series and fixed-point decimal types,
// supplying the supplementary EMA/MACD/RSI/ATR readouts a validation
// report can attach to a pattern's triggering bars without those
// indicators being part of the statistical engine itself. Grounded on
// pkg/indicators/indicators.go and internal/services/market/indicators/indicators.go,
// both teacher wrappers around the same library, adapted here from
// shopspring/decimal onto this module's own decimal.Decimal and from a
// standalone price-data slice onto *timeseries.OHLCSeries.
package diagnostics

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/timeseries"
	"github.com/pkg/errors"
)

// ErrInsufficientData is returned when a series is too short for the
// requested indicator's warm-up period.
var ErrInsufficientData = errors.New("diagnostics: insufficient data for indicator warm-up")

func closes(series *timeseries.OHLCSeries) []float64 {
	bars := series.Bars()
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close.AsDouble()
	}
	return out
}

func toDecimals(values []float64, scale uint8) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.FromFloat(v, scale)
	}
	return out
}

// scaleOf reports the decimal scale a series' own bars are carried at, so
// indicator output is rounded to the same precision as its input prices.
func scaleOf(series *timeseries.OHLCSeries) uint8 {
	bars := series.Bars()
	if len(bars) == 0 {
		return 6
	}
	return bars[0].Close.Scale()
}

// EMA computes the Exponential Moving Average of a series' closes over
// period bars.
func EMA(series *timeseries.OHLCSeries, period int) ([]decimal.Decimal, error) {
	c := closes(series)
	if len(c) < period {
		return nil, errors.Wrapf(ErrInsufficientData, "EMA needs %d bars, got %d", period, len(c))
	}
	ema := trend.NewEmaWithPeriod[float64](period)
	out := helper.ChanToSlice(ema.Compute(helper.SliceToChan(c)))
	return toDecimals(out, scaleOf(series)), nil
}

// MACD computes the MACD line (signal line is drained and discarded; the
// core only surfaces the line itself).
func MACD(series *timeseries.OHLCSeries) ([]decimal.Decimal, error) {
	c := closes(series)
	if len(c) < 26 {
		return nil, errors.Wrapf(ErrInsufficientData, "MACD needs 26 bars, got %d", len(c))
	}
	macd := trend.NewMacd[float64]()
	macdChan, signalChan := macd.Compute(helper.SliceToChan(c))
	go func() {
		for range signalChan {
		}
	}()
	out := helper.ChanToSlice(macdChan)
	return toDecimals(out, scaleOf(series)), nil
}

// RSI computes the Relative Strength Index of a series' closes over
// period bars.
func RSI(series *timeseries.OHLCSeries, period int) ([]decimal.Decimal, error) {
	c := closes(series)
	if len(c) < period+1 {
		return nil, errors.Wrapf(ErrInsufficientData, "RSI needs %d bars, got %d", period+1, len(c))
	}
	rsi := momentum.NewRsiWithPeriod[float64](period)
	out := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(c)))
	return toDecimals(out, scaleOf(series)), nil
}

// ATR computes the Average True Range over period bars.
func ATR(series *timeseries.OHLCSeries, period int) ([]decimal.Decimal, error) {
	bars := series.Bars()
	if len(bars) < period+1 {
		return nil, errors.Wrapf(ErrInsufficientData, "ATR needs %d bars, got %d", period+1, len(bars))
	}
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	cl := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High.AsDouble()
		lows[i] = b.Low.AsDouble()
		cl[i] = b.Close.AsDouble()
	}
	atr := volatility.NewAtrWithPeriod[float64](period)
	out := helper.ChanToSlice(atr.Compute(helper.SliceToChan(highs), helper.SliceToChan(lows), helper.SliceToChan(cl)))
	return toDecimals(out, scaleOf(series)), nil
}

// Snapshot is one bar-aligned bundle of diagnostic indicator readings,
// offset so every field lines up with the same trailing bar.
type Snapshot struct {
	EMA20 decimal.Decimal
	EMA50 decimal.Decimal
	MACD  decimal.Decimal
	RSI7  decimal.Decimal
	RSI14 decimal.Decimal
	ATR3  decimal.Decimal
	ATR14 decimal.Decimal
}

// Snapshots computes every indicator this package supports over series
// and aligns them to their common trailing window, trimming each
// indicator's leading warm-up bars so index i of the result always
// refers to the same underlying bar across all seven fields.
func Snapshots(series *timeseries.OHLCSeries) ([]Snapshot, error) {
	ema20, err := EMA(series, 20)
	if err != nil {
		return nil, err
	}
	ema50, err := EMA(series, 50)
	if err != nil {
		return nil, err
	}
	macd, err := MACD(series)
	if err != nil {
		return nil, err
	}
	rsi7, err := RSI(series, 7)
	if err != nil {
		return nil, err
	}
	rsi14, err := RSI(series, 14)
	if err != nil {
		return nil, err
	}
	atr3, err := ATR(series, 3)
	if err != nil {
		return nil, err
	}
	atr14, err := ATR(series, 14)
	if err != nil {
		return nil, err
	}

	minLen := len(ema20)
	for _, s := range [][]decimal.Decimal{ema50, macd, rsi7, rsi14, atr3, atr14} {
		if len(s) < minLen {
			minLen = len(s)
		}
	}

	tail := func(s []decimal.Decimal) []decimal.Decimal { return s[len(s)-minLen:] }
	ema20, ema50, macd = tail(ema20), tail(ema50), tail(macd)
	rsi7, rsi14 = tail(rsi7), tail(rsi14)
	atr3, atr14 = tail(atr3), tail(atr14)

	out := make([]Snapshot, minLen)
	for i := 0; i < minLen; i++ {
		out[i] = Snapshot{
			EMA20: ema20[i],
			EMA50: ema50[i],
			MACD:  macd[i],
			RSI7:  rsi7[i],
			RSI14: rsi14[i],
			ATR3:  atr3[i],
			ATR14: atr14[i],
		}
	}
	return out, nil
}
