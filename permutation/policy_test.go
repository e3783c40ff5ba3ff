package permutation_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/palvalidator/core/broker"
	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/pattern"
	"github.com/palvalidator/core/permutation"
	"github.com/palvalidator/core/resample"
	"github.com/palvalidator/core/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dayBar(t *testing.T, day int, o, h, l, c float64) timeseries.Bar {
	t.Helper()
	return timeseries.Bar{
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:      decimal.FromFloat(o, 4),
		High:      decimal.FromFloat(h, 4),
		Low:       decimal.FromFloat(l, 4),
		Close:     decimal.FromFloat(c, 4),
		Volume:    decimal.FromInt(1000, 2),
		Timeframe: timeseries.Daily,
	}
}

func buildEquity(t *testing.T) *timeseries.Security {
	t.Helper()
	series := timeseries.New(timeseries.Daily, timeseries.Shares)
	sec, err := timeseries.NewEquity("TEST", "Test Co", series)
	require.NoError(t, err)
	return sec
}

// buildClosedTrades runs `wins` winning round trips followed by `losses`
// losing ones through a fresh broker and returns the resulting ledger.
func buildClosedTrades(t *testing.T, wins, losses int) broker.ClosedTrades {
	t.Helper()
	sec := buildEquity(t)
	b := broker.NewBroker(false)
	volume := decimal.FromInt(100, 2)
	profitTargetPct := decimal.MustParse("5.0", 2)
	stopLossPct := decimal.MustParse("2.0", 2)

	day := 0
	roundTrip := func(win bool) {
		_, err := b.SubmitMarketEntry("TEST", pattern.Long, dayBar(t, day, 100, 101, 99, 100).Timestamp, volume, day, profitTargetPct, stopLossPct)
		require.NoError(t, err)
		day++
		_, err = b.ProcessPendingOrders("TEST", dayBar(t, day, 100, 101, 99, 100), day, sec)
		require.NoError(t, err)
		day++
		if win {
			_, err = b.ProcessPendingOrders("TEST", dayBar(t, day, 100, 106, 100, 105), day, sec)
		} else {
			_, err = b.ProcessPendingOrders("TEST", dayBar(t, day, 100, 101, 94, 96), day, sec)
		}
		require.NoError(t, err)
		day++
	}

	for i := 0; i < wins; i++ {
		roundTrip(true)
	}
	for i := 0; i < losses; i++ {
		roundTrip(false)
	}
	return b.ClosedTrades()
}

func TestEvaluate_InsufficientTradesReturnsWorstCase(t *testing.T) {
	trades := buildClosedTrades(t, 1, 0)
	require.Equal(t, 1, trades.Count())

	stat, err := permutation.Evaluate(permutation.CumulativeReturn{}, trades)
	require.NoError(t, err)
	assert.True(t, stat.Equal(permutation.WorstCase))
}

func TestEvaluate_CumulativeReturn_MeetsMinTrades(t *testing.T) {
	trades := buildClosedTrades(t, 3, 0)

	stat, err := permutation.Evaluate(permutation.CumulativeReturn{}, trades)
	require.NoError(t, err)
	assert.True(t, stat.IsPositive())
}

func TestEvaluate_PalProfitability(t *testing.T) {
	trades := buildClosedTrades(t, 3, 0)

	stat, err := permutation.Evaluate(permutation.PalProfitability{
		Sampler: resample.NewStationaryResampler(2),
		Draws:   10,
		Rng:     rand.New(rand.NewSource(1)),
	}, trades)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, stat.AsDouble(), 1e-9)
}

func TestEvaluate_PalProfitabilityBootstrapped(t *testing.T) {
	trades := buildClosedTrades(t, 4, 2)

	sampler := resample.NewStationaryResampler(2)
	rng := rand.New(rand.NewSource(7))
	stat := permutation.PalProfitability{Sampler: sampler, Draws: 50, Rng: rng}

	result, err := permutation.Evaluate(stat, trades)
	require.NoError(t, err)
	assert.True(t, result.AsDouble() >= 0 && result.AsDouble() <= 1)
}

func TestEvaluate_PessimisticReturnRatio(t *testing.T) {
	trades := buildClosedTrades(t, 4, 2)

	stat, err := permutation.Evaluate(permutation.PessimisticReturnRatio{}, trades)
	require.NoError(t, err)
	assert.True(t, stat.AsDouble() > 0)
}

func TestEvaluate_NormalizedReturn_ScalesByOpportunityRatio(t *testing.T) {
	trades := buildClosedTrades(t, 3, 0)
	barsInMarket := trades.TimeInMarket()
	require.Greater(t, barsInMarket, 0)

	equalOpportunity := permutation.NormalizedReturn{Opportunities: barsInMarket}
	equalStat, err := permutation.Evaluate(equalOpportunity, trades)
	require.NoError(t, err)

	cum, err := trades.CumulativeReturn()
	require.NoError(t, err)
	assert.InDelta(t, cum.AsDouble(), equalStat.AsDouble(), 1e-6)

	fewerOpportunities := permutation.NormalizedReturn{Opportunities: barsInMarket / 4}
	fewerStat, err := permutation.Evaluate(fewerOpportunities, trades)
	require.NoError(t, err)
	assert.Less(t, fewerStat.AsDouble(), equalStat.AsDouble())
}

func TestEvaluate_NormalizedReturn_InsufficientTrades(t *testing.T) {
	trades := buildClosedTrades(t, 2, 0)
	stat, err := permutation.Evaluate(permutation.NormalizedReturn{Opportunities: 10}, trades)
	require.NoError(t, err)
	assert.True(t, stat.Equal(permutation.WorstCase))
}
