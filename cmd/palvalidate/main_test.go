package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRun_SucceedsWithValidConfigAndData(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "spy.csv", "20240102,100.00,101.50,99.75,100.80\n20240103,100.80,102.00,100.10,101.90\n")
	patternPath := writeFile(t, dir, "patterns.txt", "placeholder")

	configBody := `
securities:
  - symbol: SPY
    big_point_value: "1"
    tick: "0.01"
    data_file: ` + filepath.Join(dir, "spy.csv") + `
    kind: equity
pattern_files:
  - ` + patternPath + `
insample_start: "2015-01-01"
insample_end: "2019-12-31"
oos_start: "2020-01-01"
oos_end: "2021-12-31"
`
	configPath := writeFile(t, dir, "backtest.yaml", configBody)

	logger := zap.NewNop()
	err := run(configPath, logger)
	assert.NoError(t, err)
}

func TestRun_FailsWhenPatternFileMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "spy.csv", "20240102,100.00,101.50,99.75,100.80\n")

	configBody := `
securities:
  - symbol: SPY
    big_point_value: "1"
    tick: "0.01"
    data_file: ` + filepath.Join(dir, "spy.csv") + `
pattern_files:
  - ` + filepath.Join(dir, "missing.txt") + `
insample_start: "2015-01-01"
insample_end: "2019-12-31"
oos_start: "2020-01-01"
oos_end: "2021-12-31"
`
	configPath := writeFile(t, dir, "backtest.yaml", configBody)

	logger := zap.NewNop()
	err := run(configPath, logger)
	assert.Error(t, err)
}

func TestRun_FailsWhenConfigMissing(t *testing.T) {
	logger := zap.NewNop()
	err := run("/nonexistent/config.yaml", logger)
	assert.Error(t, err)
}
