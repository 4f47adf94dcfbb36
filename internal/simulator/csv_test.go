package simulator

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSVHeaderAndRows(t *testing.T) {
	rows := []Reading{
		{
			MachineID:    0,
			Timestamp:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			TempC:        47.25,
			VibrationMS2: 1.05,
			PressurePSI:  291.5,
			LoadPct:      61.0,
			RPM:          1700.5,
			HealthScore:  1.0,
			Failed:       0,
		},
		{
			MachineID:    0,
			Timestamp:    time.Date(2024, 1, 1, 0, 10, 0, 0, time.UTC),
			TempC:        48.110000000000003,
			VibrationMS2: 1.11,
			PressurePSI:  290.0,
			LoadPct:      62.5,
			RPM:          1698.0,
			HealthScore:  0.29,
			Failed:       1,
		},
	}

	path := filepath.Join(t.TempDir(), "out", "synthetic_sensor_data.csv")
	require.NoError(t, WriteCSV(path, rows))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{
		"machine_id", "timestamp", "temp_c", "vibration_ms2",
		"pressure_psi", "load_pct", "rpm", "health_score", "failed",
	}, records[0])

	assert.Equal(t, "0", records[1][0])
	assert.Equal(t, "2024-01-01 00:00:00", records[1][1])
	assert.Equal(t, "1", records[1][7])
	assert.Equal(t, "0", records[1][8])

	assert.Equal(t, "2024-01-01 00:10:00", records[2][1])
	assert.Equal(t, "1", records[2][8])

	// Floats must survive a round trip exactly.
	got, err := strconv.ParseFloat(records[2][2], 64)
	require.NoError(t, err)
	assert.Equal(t, rows[1].TempC, got)
}

func TestWriteCSVGeneratedDataset(t *testing.T) {
	rows, err := Generate(context.Background(), Options{
		Machines: 2,
		Days:     1,
		Step:     time.Hour,
		Seed:     42,
		Start:    DefaultStart,
		Workers:  2,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, WriteCSV(path, rows))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1+len(rows))

	// Row order in the file matches dataset order.
	for i, r := range rows {
		rec := records[i+1]
		assert.Equal(t, strconv.Itoa(r.MachineID), rec[0])
		assert.Equal(t, r.Timestamp.Format("2006-01-02 15:04:05"), rec[1])
		assert.Equal(t, strconv.Itoa(r.Failed), rec[8])
	}
}

func TestWriteCSVCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c.csv")
	require.NoError(t, WriteCSV(path, nil))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}
