package palio

import (
	"fmt"
	"io"

	"github.com/palvalidator/core/timeseries"
)

// WritePALEOD writes the no-header `YYYYMMDD,open,high,low,close` format.
func WritePALEOD(w io.Writer, series *timeseries.OHLCSeries, ending LineEnding) error {
	for _, bar := range series.Bars() {
		line := fmt.Sprintf("%s,%s,%s,%s,%s%s",
			bar.Timestamp.Format(palEODDateLayout),
			bar.Open, bar.High, bar.Low, bar.Close, string(ending))
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WritePALVolumeForClose writes the no-header
// `YYYYMMDD,open,high,low,volume` format.
func WritePALVolumeForClose(w io.Writer, series *timeseries.OHLCSeries, ending LineEnding) error {
	for _, bar := range series.Bars() {
		line := fmt.Sprintf("%s,%s,%s,%s,%s%s",
			bar.Timestamp.Format(palEODDateLayout),
			bar.Open, bar.High, bar.Low, bar.Volume, string(ending))
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

// PalIntradaySequenceStart is the sequential counter's first value, per
// the writer's convention of numbering rows rather than timestamping them.
const PalIntradaySequenceStart = 10000001

// WritePALIntraday writes the space-separated `seq open high low close`
// format, numbering rows sequentially from PalIntradaySequenceStart —
// mirroring PalIntradayFormatter's own internal counter, one per writer
// call rather than shared across calls.
func WritePALIntraday(w io.Writer, series *timeseries.OHLCSeries, ending LineEnding) error {
	seq := PalIntradaySequenceStart
	for _, bar := range series.Bars() {
		line := fmt.Sprintf("%d %s %s %s %s%s", seq, bar.Open, bar.High, bar.Low, bar.Close, string(ending))
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
		seq++
	}
	return nil
}

// WriteTradeStationEOD writes the quoted `"Date","Time","Open","High",
// "Low","Close","Vol","OI"` header format, with Time fixed at "00:00" and
// OI fixed at 0 for daily data.
func WriteTradeStationEOD(w io.Writer, series *timeseries.OHLCSeries, ending LineEnding) error {
	if _, err := io.WriteString(w, `"Date","Time","Open","High","Low","Close","Vol","OI"`+string(ending)); err != nil {
		return err
	}
	for _, bar := range series.Bars() {
		line := fmt.Sprintf("%s,00:00,%s,%s,%s,%s,%s,0%s",
			bar.Timestamp.Format(tradeStationDateLayout),
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, string(ending))
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WriteTradeStationIntraday writes the same layout with `"Up","Down"` in
// place of `"Vol","OI"`, both fixed at 0, and the bar's HH:MM time.
func WriteTradeStationIntraday(w io.Writer, series *timeseries.OHLCSeries, ending LineEnding) error {
	if _, err := io.WriteString(w, `"Date","Time","Open","High","Low","Close","Up","Down"`+string(ending)); err != nil {
		return err
	}
	for _, bar := range series.Bars() {
		line := fmt.Sprintf("%s,%s,%s,%s,%s,%s,0,0%s",
			bar.Timestamp.Format(tradeStationDateLayout),
			bar.Timestamp.Format(tradeStationTimeLayout),
			bar.Open, bar.High, bar.Low, bar.Close, string(ending))
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}
