package palio

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/palvalidator/core/decimal"
	"github.com/pkg/errors"
)

// SecurityConfig is one row of the security-configuration CSV: symbol,
// big-point-value, tick, file-name, file-path, is-futures.
type SecurityConfig struct {
	Symbol        string
	BigPointValue decimal.Decimal
	Tick          decimal.Decimal
	FileName      string
	FilePath      string
	IsFutures     bool
}

// ReadSecurityConfig parses the no-header six-column security list.
func ReadSecurityConfig(r io.Reader) ([]SecurityConfig, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	var out []SecurityConfig
	line := 0
	for {
		line++
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "palio: security config line %d", line)
		}
		if len(row) != 6 {
			return nil, &FormatError{Format: "security config", Line: line, Want: 6, Got: len(row)}
		}
		bpv, err := parsePrice(row[1])
		if err != nil {
			return nil, errors.Wrapf(err, "palio: security config line %d: big-point-value %q", line, row[1])
		}
		tick, err := parsePrice(row[2])
		if err != nil {
			return nil, errors.Wrapf(err, "palio: security config line %d: tick %q", line, row[2])
		}
		isFutures, err := strconv.ParseBool(row[5])
		if err != nil {
			return nil, errors.Wrapf(err, "palio: security config line %d: is-futures %q", line, row[5])
		}
		out = append(out, SecurityConfig{
			Symbol:        row[0],
			BigPointValue: bpv,
			Tick:          tick,
			FileName:      row[3],
			FilePath:      row[4],
			IsFutures:     isFutures,
		})
	}
	return out, nil
}

// WriteSecurityConfig writes the no-header six-column security list.
func WriteSecurityConfig(w io.Writer, configs []SecurityConfig, ending LineEnding) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = ending == Windows
	for _, c := range configs {
		record := []string{
			c.Symbol,
			c.BigPointValue.String(),
			c.Tick.String(),
			c.FileName,
			c.FilePath,
			strconv.FormatBool(c.IsFutures),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
