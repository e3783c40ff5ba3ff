package timeseries_test

import (
	"testing"

	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurity_EquityDefaults(t *testing.T) {
	series := timeseries.New(timeseries.Daily, timeseries.Shares)
	sec, err := timeseries.NewEquity("AAPL", "Apple Inc.", series)
	require.NoError(t, err)
	assert.Equal(t, "0.01", sec.Tick.String())
	assert.Equal(t, "0.005", sec.TickHalf().String())
	assert.Equal(t, "1.00", sec.BigPointValue.String())
}

func TestSecurity_FuturesExplicitValues(t *testing.T) {
	series := timeseries.New(timeseries.Daily, timeseries.Contracts)
	bpv := decimal.MustParse("50.00", 2)
	tick := decimal.MustParse("0.25", 2)
	sec, err := timeseries.NewFutures("ES", "E-mini S&P 500", bpv, tick, series)
	require.NoError(t, err)
	assert.Equal(t, "0.125", sec.TickHalf().String())
}

func TestSecurity_RejectsEmptySymbol(t *testing.T) {
	series := timeseries.New(timeseries.Daily, timeseries.Shares)
	_, err := timeseries.NewEquity("", "nothing", series)
	require.ErrorIs(t, err, timeseries.ErrContractViolation)
}

func TestPortfolio_RejectsDuplicateSymbol(t *testing.T) {
	p := timeseries.NewPortfolio()
	series := timeseries.New(timeseries.Daily, timeseries.Shares)
	sec, err := timeseries.NewEquity("AAPL", "Apple Inc.", series)
	require.NoError(t, err)

	require.NoError(t, p.AddSecurity(sec))
	err = p.AddSecurity(sec)
	require.ErrorIs(t, err, timeseries.ErrContractViolation)
	assert.Equal(t, 1, p.Len())
}

func TestPortfolio_CloneIsIndependent(t *testing.T) {
	p := timeseries.NewPortfolio()
	series := timeseries.New(timeseries.Daily, timeseries.Shares)
	sec, err := timeseries.NewEquity("AAPL", "Apple Inc.", series)
	require.NoError(t, err)
	require.NoError(t, p.AddSecurity(sec))

	clone := p.Clone()
	clone.Security("AAPL").Tick = decimal.MustParse("0.05", 2)
	assert.Equal(t, "0.01", p.Security("AAPL").Tick.String())
}
