package simulator

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// timestampLayout renders grid instants without zone or sub-second noise.
const timestampLayout = "2006-01-02 15:04:05"

var csvHeader = []string{
	"machine_id",
	"timestamp",
	"temp_c",
	"vibration_ms2",
	"pressure_psi",
	"load_pct",
	"rpm",
	"health_score",
	"failed",
}

// WriteCSV writes a derived dataset to path in one pass: header first, then
// one record per reading in dataset order. Floats use the shortest
// representation that round-trips, so rereading the file reproduces the exact
// values.
func WriteCSV(path string, rows []Reading) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(csvHeader))
	for i := range rows {
		r := &rows[i]
		record[0] = strconv.Itoa(r.MachineID)
		record[1] = r.Timestamp.Format(timestampLayout)
		record[2] = formatFloat(r.TempC)
		record[3] = formatFloat(r.VibrationMS2)
		record[4] = formatFloat(r.PressurePSI)
		record[5] = formatFloat(r.LoadPct)
		record[6] = formatFloat(r.RPM)
		record[7] = formatFloat(r.HealthScore)
		record[8] = strconv.Itoa(r.Failed)

		if err := w.Write(record); err != nil {
			f.Close()
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
