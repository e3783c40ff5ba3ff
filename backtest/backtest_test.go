package backtest_test

import (
	"testing"
	"time"

	"github.com/palvalidator/core/backtest"
	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/pattern"
	"github.com/palvalidator/core/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildAlwaysWinningSeries produces a strictly-increasing-close series
// whose every bar's high clears a 1% profit target from that bar's own
// open, guaranteeing every filled entry exits as a winner on the same
// bar it fills.
func buildAlwaysWinningSeries(t *testing.T, days int) *timeseries.OHLCSeries {
	t.Helper()
	series := timeseries.New(timeseries.Daily, timeseries.Shares)
	for i := 0; i < days; i++ {
		open := 100.0 + float64(i)
		bar := timeseries.Bar{
			Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:      decimal.FromFloat(open, 4),
			High:      decimal.FromFloat(open*1.2, 4),
			Low:       decimal.FromFloat(open*0.9, 4),
			Close:     decimal.FromFloat(open+0.5, 4),
			Volume:    decimal.FromInt(1000, 2),
			Timeframe: timeseries.Daily,
		}
		require.NoError(t, series.Add(bar))
	}
	return series
}

func TestBacktester_DeterministicLongPattern_24WinsNoLosses(t *testing.T) {
	series := buildAlwaysWinningSeries(t, 26)
	sec, err := timeseries.NewEquity("WIN", "Always Winning Co", series)
	require.NoError(t, err)

	portfolio := timeseries.NewPortfolio()
	require.NoError(t, portfolio.AddSecurity(sec))

	closeUp := pattern.NewComparison(
		pattern.Operand{Offset: 0, Field: pattern.Close},
		pattern.Operand{Offset: 1, Field: pattern.Close},
	)
	p := pattern.Compile("close up", closeUp, pattern.Long, decimal.MustParse("1.0", 2), decimal.MustParse("50.0", 2))

	strategy := backtest.NewStrategy("always-win", portfolio, []*pattern.Pattern{p}, decimal.FromInt(100, 2), false)

	bars := series.Bars()
	bt := backtest.New([]backtest.DateRange{{Start: bars[0].Timestamp, End: bars[len(bars)-1].Timestamp}})
	bt.AddStrategy(strategy)

	require.NoError(t, bt.Run())

	closed := strategy.Broker.ClosedTrades()
	require.Equal(t, 24, closed.Count())

	pal, err := closed.PalProfitability()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pal.AsDouble(), 1e-9)

	for _, trade := range closed {
		assert.True(t, trade.IsWinning())
	}
}

func TestBacktester_FlatSymbolSkipsEntryWithoutData(t *testing.T) {
	series := timeseries.New(timeseries.Daily, timeseries.Shares)
	sec, err := timeseries.NewEquity("EMPTY", "No Data Co", series)
	require.NoError(t, err)

	portfolio := timeseries.NewPortfolio()
	require.NoError(t, portfolio.AddSecurity(sec))

	closeUp := pattern.NewComparison(
		pattern.Operand{Offset: 0, Field: pattern.Close},
		pattern.Operand{Offset: 1, Field: pattern.Close},
	)
	p := pattern.Compile("close up", closeUp, pattern.Long, decimal.MustParse("1.0", 2), decimal.MustParse("50.0", 2))
	strategy := backtest.NewStrategy("no-data", portfolio, []*pattern.Pattern{p}, decimal.FromInt(100, 2), false)

	bt := backtest.New([]backtest.DateRange{{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}})
	bt.AddStrategy(strategy)

	require.NoError(t, bt.Run())
	assert.Equal(t, 0, strategy.Broker.ClosedTrades().Count())
}
