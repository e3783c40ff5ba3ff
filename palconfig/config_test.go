package palconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/palvalidator/core/palconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "backtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validConfig = `
securities:
  - symbol: SPY
    big_point_value: "1"
    tick: "0.01"
    data_file: spy.csv
    kind: equity
  - symbol: ES
    big_point_value: "50"
    tick: "0.25"
    data_file: es.csv
    kind: futures
pattern_files:
  - patterns/mean-reversion.txt
insample_start: "2015-01-01"
insample_end: "2019-12-31"
oos_start: "2020-01-01"
oos_end: "2021-12-31"
permutation_count: "500"
correction_policy: romano-wolf
fdr: "0.25"
alpha: "0.05"
rng_seed: "42"
`

func TestLoad_ParsesValidConfig(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := palconfig.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Securities, 2)
	assert.Equal(t, "SPY", cfg.Securities[0].Symbol)
	assert.Equal(t, palconfig.SecurityEquity, cfg.Securities[0].Kind)
	assert.Equal(t, palconfig.SecurityFutures, cfg.Securities[1].Kind)
	assert.Equal(t, 500, cfg.PermutationCount)
	assert.Equal(t, palconfig.PolicyRomanoWolf, cfg.CorrectionPolicy)
	assert.Equal(t, int64(42), cfg.RNGSeed)
	assert.True(t, cfg.InSampleEnd.After(cfg.InSampleStart))
}

func TestLoad_MissingFileIsConfigError(t *testing.T) {
	_, err := palconfig.Load("/nonexistent/backtest.yaml")
	assert.ErrorIs(t, err, palconfig.ErrConfig)
}

func TestLoad_DuplicateSymbolIsConfigError(t *testing.T) {
	body := `
securities:
  - symbol: SPY
    big_point_value: "1"
    tick: "0.01"
    data_file: a.csv
  - symbol: SPY
    big_point_value: "1"
    tick: "0.01"
    data_file: b.csv
pattern_files: [patterns.txt]
insample_start: "2015-01-01"
insample_end: "2019-12-31"
oos_start: "2020-01-01"
oos_end: "2021-12-31"
`
	path := writeConfig(t, body)
	_, err := palconfig.Load(path)
	assert.ErrorIs(t, err, palconfig.ErrConfig)
	assert.Contains(t, err.Error(), "already in portfolio")
}

func TestLoad_MissingPatternFilesIsConfigError(t *testing.T) {
	body := `
securities:
  - symbol: SPY
    big_point_value: "1"
    tick: "0.01"
    data_file: a.csv
insample_start: "2015-01-01"
insample_end: "2019-12-31"
oos_start: "2020-01-01"
oos_end: "2021-12-31"
`
	path := writeConfig(t, body)
	_, err := palconfig.Load(path)
	assert.ErrorIs(t, err, palconfig.ErrConfig)
}

func TestLoad_DefaultsAppliedWhenOptionalFieldsOmitted(t *testing.T) {
	body := `
securities:
  - symbol: SPY
    big_point_value: "1"
    tick: "0.01"
    data_file: a.csv
pattern_files: [patterns.txt]
insample_start: "2015-01-01"
insample_end: "2019-12-31"
oos_start: "2020-01-01"
oos_end: "2021-12-31"
`
	path := writeConfig(t, body)
	cfg, err := palconfig.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.PermutationCount)
	assert.Equal(t, palconfig.PolicyBenjaminiHochberg, cfg.CorrectionPolicy)
	assert.Equal(t, 0.20, cfg.FDR)
	assert.Equal(t, 0.05, cfg.Alpha)
}

func TestSecurityEntry_ToSecurity_BuildsEquityAndFutures(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := palconfig.Load(path)
	require.NoError(t, err)

	spySec, err := cfg.Securities[0].ToSecurity(nil)
	require.NoError(t, err)
	assert.Equal(t, "SPY", spySec.Symbol)

	esSec, err := cfg.Securities[1].ToSecurity(nil)
	require.NoError(t, err)
	assert.Equal(t, "ES", esSec.Symbol)
}
