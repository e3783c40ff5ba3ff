package palio_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/palio"
	"github.com/palvalidator/core/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var equityTick = decimal.MustParse("0.01", 2)

func TestReadPALEOD_ParsesDailyBars(t *testing.T) {
	input := "20240102,100.00,101.50,99.75,100.80\n20240103,100.80,102.00,100.10,101.90\n"
	bars, err := palio.ReadPALEOD(strings.NewReader(input), timeseries.Daily, equityTick)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2024-01-02", bars[0].Timestamp.Format("2006-01-02"))
	assert.True(t, bars[0].Close.Equal(decimal.MustParse("100.80", 2)))
}

func TestReadPALEOD_RejectsIntraday(t *testing.T) {
	_, err := palio.ReadPALEOD(strings.NewReader("20240102,1,2,1,1\n"), timeseries.Intraday, equityTick)
	assert.ErrorIs(t, err, timeseries.ErrContractViolation)
}

func TestReadPALEOD_RejectsWrongColumnCount(t *testing.T) {
	_, err := palio.ReadPALEOD(strings.NewReader("20240102,1,2,1\n"), timeseries.Daily, equityTick)
	var fe *palio.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 5, fe.Want)
	assert.Equal(t, 4, fe.Got)
}

func TestReadPALIntraday_AssignsIncreasingSyntheticTimestamps(t *testing.T) {
	input := "10000001 10.00 10.50 9.90 10.20\n10000002 10.20 10.60 10.00 10.40\n"
	bars, err := palio.ReadPALIntraday(strings.NewReader(input), equityTick)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[1].Timestamp.After(bars[0].Timestamp))
}

func TestReadPALVolumeForClose_SetsCloseEqualToOpen(t *testing.T) {
	input := "20240102,100.00,101.00,99.00,5000\n"
	bars, err := palio.ReadPALVolumeForClose(strings.NewReader(input), timeseries.Daily, equityTick)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Close.Equal(bars[0].Open))
	assert.True(t, bars[0].Volume.Equal(decimal.MustParse("5000", 8)))
}

func TestReadTradeStationEOD_ParsesQuotedHeaderAndDate(t *testing.T) {
	input := "\"Date\",\"Time\",\"Open\",\"High\",\"Low\",\"Close\",\"Vol\",\"OI\"\n" +
		"01/02/2024,00:00,100.00,101.50,99.75,100.80,1000,0\n"
	bars, err := palio.ReadTradeStationEOD(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "2024-01-02", bars[0].Timestamp.Format("2006-01-02"))
}

func TestReadTradeStationIntraday_ParsesTimeIntoTimestamp(t *testing.T) {
	input := "\"Date\",\"Time\",\"Open\",\"High\",\"Low\",\"Close\",\"Up\",\"Down\"\n" +
		"01/02/2024,09:30,100.00,101.50,99.75,100.80,0,0\n"
	bars, err := palio.ReadTradeStationIntraday(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 9, bars[0].Timestamp.Hour())
	assert.Equal(t, 30, bars[0].Timestamp.Minute())
}

func TestReadCSIExtendedFutures_ParsesNineColumnsNoHeader(t *testing.T) {
	input := "20240102,100.00,101.50,99.75,100.80,1000,50,20240301,100.50\n"
	bars, err := palio.ReadCSIExtendedFutures(strings.NewReader(input), timeseries.Daily, equityTick)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Close.Equal(decimal.MustParse("100.80", 2)))
}

func TestReadWealthLab_ParsesUSStyleDateWithHeader(t *testing.T) {
	input := "Date/Time,Open,High,Low,Close,Volume\n5/30/2000,0.22578125,0.23463542,0.22473957,0.22890625,306210240\n"
	bars, err := palio.ReadWealthLab(strings.NewReader(input), timeseries.Daily, decimal.MustParse("0.00000001", 8))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 2000, bars[0].Timestamp.Year())
	assert.Equal(t, 5, int(bars[0].Timestamp.Month()))
	assert.Equal(t, 30, bars[0].Timestamp.Day())
}

func TestReadSecurityConfig_ParsesSixFields(t *testing.T) {
	input := "SPY,1,0.01,spy.csv,/data,false\nES,50,0.25,es.csv,/data,true\n"
	configs, err := palio.ReadSecurityConfig(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "SPY", configs[0].Symbol)
	assert.False(t, configs[0].IsFutures)
	assert.Equal(t, "ES", configs[1].Symbol)
	assert.True(t, configs[1].IsFutures)
}

func TestSecurityConfigRoundTrip(t *testing.T) {
	configs := []palio.SecurityConfig{
		{Symbol: "SPY", BigPointValue: decimal.FromInt(1, 2), Tick: decimal.MustParse("0.01", 2), FileName: "spy.csv", FilePath: "/data", IsFutures: false},
	}
	var buf bytes.Buffer
	require.NoError(t, palio.WriteSecurityConfig(&buf, configs, palio.Unix))

	parsed, err := palio.ReadSecurityConfig(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, "SPY", parsed[0].Symbol)
}
