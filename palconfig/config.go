// Package palconfig parses the YAML backtest configuration: security
// list, pattern file paths, in-sample/out-of-sample date ranges, Monte
// Carlo permutation count, multiple-testing correction policy, and RNG
// seed. Grounded on the teacher's config.Config/config.ConfigTmp split
// (config/config.go): a typed Config plus a string-keyed YAML shadow
// struct that gets parsed and converted, preserving the same
// decimal-as-string YAML idiom the teacher uses for monetary amounts.
package palconfig

import (
	"os"
	"strconv"
	"time"

	coredecimal "github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/timeseries"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrConfig is the sentinel every configuration failure wraps, matching
// spec.md §7's "Configuration" error kind (missing file, unreadable CSV,
// mismatched column count, symbol already in portfolio, ...).
var ErrConfig = errors.New("palconfig: configuration error")

const dateLayout = "2006-01-02"

// SecurityKind mirrors timeseries.SecurityKind at the YAML boundary.
type SecurityKind string

const (
	SecurityEquity  SecurityKind = "equity"
	SecurityFutures SecurityKind = "futures"
)

// CorrectionPolicy names one of the correction package's exported
// strategies, selected by the config file rather than wired at compile
// time.
type CorrectionPolicy string

const (
	PolicyBenjaminiHochberg CorrectionPolicy = "benjamini-hochberg"
	PolicyAdaptiveBH2000    CorrectionPolicy = "adaptive-bh-2000"
	PolicyUnadjusted        CorrectionPolicy = "unadjusted"
	PolicyRomanoWolf        CorrectionPolicy = "romano-wolf"
	PolicyHolmRomanoWolf    CorrectionPolicy = "holm-romano-wolf"
)

// SecurityEntry is one configured tradeable instrument: its symbol,
// contract economics, and the data file backing its price series.
type SecurityEntry struct {
	Symbol        string
	BigPointValue decimal.Decimal
	Tick          decimal.Decimal
	DataFile      string
	Kind          SecurityKind
}

// ToSecurity builds a timeseries.Security from this entry's economics and
// a caller-loaded series, translating from palconfig's shopspring/decimal
// (the natural type for hand-authored YAML numeric literals) to the
// core's own fixed-point decimal.Decimal at the boundary.
func (e SecurityEntry) ToSecurity(series *timeseries.OHLCSeries) (*timeseries.Security, error) {
	bpv, err := coredecimal.Parse(e.BigPointValue.String(), 6)
	if err != nil {
		return nil, errors.Wrapf(err, "palconfig: security %s: big-point-value", e.Symbol)
	}
	tick, err := coredecimal.Parse(e.Tick.String(), 6)
	if err != nil {
		return nil, errors.Wrapf(err, "palconfig: security %s: tick", e.Symbol)
	}
	switch e.Kind {
	case SecurityFutures:
		return timeseries.NewFutures(e.Symbol, e.Symbol, bpv, tick, series)
	default:
		return timeseries.NewEquity(e.Symbol, e.Symbol, series)
	}
}

// Config is the fully-parsed backtest configuration.
type Config struct {
	Securities        []SecurityEntry
	PatternFiles      []string
	InSampleStart     time.Time
	InSampleEnd       time.Time
	OutOfSampleStart  time.Time
	OutOfSampleEnd    time.Time
	PermutationCount  int
	CorrectionPolicy  CorrectionPolicy
	FDR               float64
	Alpha             float64
	RNGSeed           int64
}

type securityEntryTmp struct {
	Symbol        string `yaml:"symbol"`
	BigPointValue string `yaml:"big_point_value"`
	Tick          string `yaml:"tick"`
	DataFile      string `yaml:"data_file"`
	Kind          string `yaml:"kind"`
}

type configTmp struct {
	Securities           []securityEntryTmp `yaml:"securities"`
	PatternFiles         []string           `yaml:"pattern_files"`
	InSampleStart        string             `yaml:"insample_start"`
	InSampleEnd          string             `yaml:"insample_end"`
	OutOfSampleStart     string             `yaml:"oos_start"`
	OutOfSampleEnd       string             `yaml:"oos_end"`
	PermutationCountStr  string             `yaml:"permutation_count"`
	CorrectionPolicyStr  string             `yaml:"correction_policy"`
	FDRStr               string             `yaml:"fdr,omitempty"`
	AlphaStr             string             `yaml:"alpha,omitempty"`
	RNGSeedStr           string             `yaml:"rng_seed,omitempty"`
}

// Load reads and parses a backtest configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "read %s: %v", path, err)
	}
	var tmp configTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return nil, errors.Wrapf(ErrConfig, "parse %s: %v", path, err)
	}
	return parseConfig(tmp)
}

func parseConfig(c configTmp) (*Config, error) {
	if len(c.Securities) == 0 {
		return nil, errors.Wrap(ErrConfig, "no securities configured")
	}

	seen := make(map[string]bool, len(c.Securities))
	securities := make([]SecurityEntry, 0, len(c.Securities))
	for _, s := range c.Securities {
		if seen[s.Symbol] {
			return nil, errors.Wrapf(ErrConfig, "symbol %q already in portfolio", s.Symbol)
		}
		seen[s.Symbol] = true

		bpv, err := decimal.NewFromString(s.BigPointValue)
		if err != nil {
			return nil, errors.Wrapf(ErrConfig, "security %s: big_point_value %q: %v", s.Symbol, s.BigPointValue, err)
		}
		tick, err := decimal.NewFromString(s.Tick)
		if err != nil {
			return nil, errors.Wrapf(ErrConfig, "security %s: tick %q: %v", s.Symbol, s.Tick, err)
		}
		kind := SecurityKind(s.Kind)
		if kind == "" {
			kind = SecurityEquity
		}
		if kind != SecurityEquity && kind != SecurityFutures {
			return nil, errors.Wrapf(ErrConfig, "security %s: invalid kind %q", s.Symbol, s.Kind)
		}
		securities = append(securities, SecurityEntry{
			Symbol:        s.Symbol,
			BigPointValue: bpv,
			Tick:          tick,
			DataFile:      s.DataFile,
			Kind:          kind,
		})
	}

	inStart, err := parseDate(c.InSampleStart, "insample_start")
	if err != nil {
		return nil, err
	}
	inEnd, err := parseDate(c.InSampleEnd, "insample_end")
	if err != nil {
		return nil, err
	}
	oosStart, err := parseDate(c.OutOfSampleStart, "oos_start")
	if err != nil {
		return nil, err
	}
	oosEnd, err := parseDate(c.OutOfSampleEnd, "oos_end")
	if err != nil {
		return nil, err
	}
	if !inEnd.After(inStart) {
		return nil, errors.Wrap(ErrConfig, "insample_end must be after insample_start")
	}
	if !oosEnd.After(oosStart) {
		return nil, errors.Wrap(ErrConfig, "oos_end must be after oos_start")
	}

	permutationCount := 1000
	if c.PermutationCountStr != "" {
		permutationCount, err = strconv.Atoi(c.PermutationCountStr)
		if err != nil {
			return nil, errors.Wrapf(ErrConfig, "permutation_count %q: %v", c.PermutationCountStr, err)
		}
		if permutationCount <= 0 {
			return nil, errors.Wrap(ErrConfig, "permutation_count must be > 0")
		}
	}

	policy := CorrectionPolicy(c.CorrectionPolicyStr)
	if policy == "" {
		policy = PolicyBenjaminiHochberg
	}
	switch policy {
	case PolicyBenjaminiHochberg, PolicyAdaptiveBH2000, PolicyUnadjusted, PolicyRomanoWolf, PolicyHolmRomanoWolf:
	default:
		return nil, errors.Wrapf(ErrConfig, "unknown correction_policy %q", c.CorrectionPolicyStr)
	}

	fdr := 0.20
	if c.FDRStr != "" {
		fdr, err = strconv.ParseFloat(c.FDRStr, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrConfig, "fdr %q: %v", c.FDRStr, err)
		}
	}

	alpha := 0.05
	if c.AlphaStr != "" {
		alpha, err = strconv.ParseFloat(c.AlphaStr, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrConfig, "alpha %q: %v", c.AlphaStr, err)
		}
	}

	var seed int64 = 1
	if c.RNGSeedStr != "" {
		seed, err = strconv.ParseInt(c.RNGSeedStr, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrConfig, "rng_seed %q: %v", c.RNGSeedStr, err)
		}
	}

	if len(c.PatternFiles) == 0 {
		return nil, errors.Wrap(ErrConfig, "no pattern_files configured")
	}

	return &Config{
		Securities:       securities,
		PatternFiles:     c.PatternFiles,
		InSampleStart:    inStart,
		InSampleEnd:      inEnd,
		OutOfSampleStart: oosStart,
		OutOfSampleEnd:   oosEnd,
		PermutationCount: permutationCount,
		CorrectionPolicy: policy,
		FDR:              fdr,
		Alpha:            alpha,
		RNGSeed:          seed,
	}, nil
}

func parseDate(s, field string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.Wrapf(ErrConfig, "%s is required", field)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrConfig, "%s %q: %v", field, s, err)
	}
	return t, nil
}
