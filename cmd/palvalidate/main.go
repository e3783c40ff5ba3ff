// Command palvalidate is the minimal CLI surface around the core
// statistical validation engine: `palvalidate <config.txt>`. It loads the
// backtest configuration, loads each configured security's price series,
// verifies every referenced pattern file is present and readable, and
// prints a per-security diagnostic summary. Exit code 0 means success;
// nonzero means a configuration error, I/O error, or validation failure
// (spec.md §6), matching the teacher's "log one line, then stop" style in
// cmd/main.go but via cobra rather than stdlib flag, following the pack's
// NimbleMarkets-dbn-go CLI tree.
//
// Executing the Monte Carlo permutation/correction pipeline itself
// requires already-compiled patterns (spec.md §1: the source-language
// pattern DSL/parser is an external collaborator the core never ships);
// this CLI's pattern-file check is therefore a presence/readability check,
// not an execution of the patterns it names.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	coredecimal "github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/diagnostics"
	"github.com/palvalidator/core/palconfig"
	"github.com/palvalidator/core/palio"
	"github.com/palvalidator/core/timeseries"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	zapCfg := zap.NewProductionConfig()
	zapCfg.DisableStacktrace = true
	logger := zap.Must(zapCfg.Build())
	defer func() {
		_ = logger.Sync()
	}()

	rootCmd := newRootCmd(logger)
	if err := rootCmd.Execute(); err != nil {
		logger.Error("palvalidate failed", zap.Error(err))
		os.Exit(1)
	}
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "palvalidate <config.txt>",
		Short: "Validate a backtest configuration and load its configured securities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], logger)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func run(configPath string, logger *zap.Logger) error {
	// Stamped fresh on every invocation so two concurrent validation runs
	// (e.g. an insample and an OOS pass) are distinguishable in logs; every
	// log line emitted for the rest of this run carries it.
	logger = logger.With(zap.String("run_id", uuid.New().String()))

	cfg, err := palconfig.Load(configPath)
	if err != nil {
		return err
	}
	logger.Info("loaded configuration",
		zap.Int("securities", len(cfg.Securities)),
		zap.Int("pattern_files", len(cfg.PatternFiles)),
		zap.Int("permutation_count", cfg.PermutationCount),
		zap.String("correction_policy", string(cfg.CorrectionPolicy)))

	for _, patternFile := range cfg.PatternFiles {
		if _, err := os.Stat(patternFile); err != nil {
			return fmt.Errorf("pattern file %s: %w", patternFile, err)
		}
	}

	for _, entry := range cfg.Securities {
		series, err := loadSeries(entry)
		if err != nil {
			return fmt.Errorf("security %s: %w", entry.Symbol, err)
		}
		sec, err := entry.ToSecurity(series)
		if err != nil {
			return fmt.Errorf("security %s: %w", entry.Symbol, err)
		}
		reportSecurity(logger, sec)
	}

	logger.Info("validation run complete")
	return nil
}

func loadSeries(entry palconfig.SecurityEntry) (*timeseries.OHLCSeries, error) {
	f, err := os.Open(entry.DataFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tick, err := coredecimal.Parse(entry.Tick.String(), 6)
	if err != nil {
		return nil, err
	}
	bars, err := palio.ReadPALEOD(f, timeseries.Daily, tick)
	if err != nil {
		return nil, err
	}
	return timeseries.NewFromSortedBars(timeseries.Daily, timeseries.Shares, bars)
}

func reportSecurity(logger *zap.Logger, sec *timeseries.Security) {
	bars := sec.Series.Bars()
	if len(bars) == 0 {
		logger.Warn("security has no bars", zap.String("symbol", sec.Symbol))
		return
	}

	fields := []zap.Field{
		zap.String("symbol", sec.Symbol),
		zap.Int("bars", len(bars)),
		zap.String("last_close", bars[len(bars)-1].Close.String()),
	}

	snaps, err := diagnostics.Snapshots(sec.Series)
	if err != nil {
		logger.Warn("diagnostics unavailable", zap.String("symbol", sec.Symbol), zap.Error(err))
	} else if len(snaps) > 0 {
		last := snaps[len(snaps)-1]
		fields = append(fields,
			zap.String("ema20", last.EMA20.String()),
			zap.String("rsi14", last.RSI14.String()),
			zap.String("atr14", last.ATR14.String()))
	}

	logger.Info("security loaded", fields...)
}
