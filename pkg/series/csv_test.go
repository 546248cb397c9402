package series_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/myrern/Backtester-v2/pkg/feed"
	"github.com/myrern/Backtester-v2/pkg/series"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSeries(t *testing.T) *series.Series {
	t.Helper()
	ser, err := series.Assemble([]feed.BarEvent{
		event("1700000000", 10, 11, 9, 10.5, 100),
		event("1700003600", 10.5, 11.5, 10, 11, 110.25),
		event("1700007200", 11, 12, 10.5, 11.75, 0),
	})
	require.NoError(t, err)
	return ser
}

func TestCSVRoundTrip(t *testing.T) {
	ser := sampleSeries(t)
	path := filepath.Join(t.TempDir(), "AAPL_5_D_1_hour.csv")

	require.NoError(t, series.WriteCSV(path, ser))

	got, err := series.ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, ser.Bars(), got.Bars())
	assert.Equal(t, ser.Returns(), got.Returns())
}

func TestWriteCSVLeavesNoPartialFile(t *testing.T) {
	ser := sampleSeries(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "AAPL_5_D_1_hour.csv")

	require.NoError(t, series.WriteCSV(path, ser))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}

func TestReadCSVMissingFile(t *testing.T) {
	_, err := series.ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "AAPL_5_D_1_hour.csv", series.FileName("aapl", "5 D", "1 hour"))
	assert.Equal(t, "TSM_30_D_5_mins.csv", series.FileName("TSM", "30 D", "5 mins"))
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	ser := sampleSeries(t)
	full := filepath.Join(dir, series.FileName("AAPL", "5 D", "1 hour"))
	require.NoError(t, series.WriteCSV(full, ser))

	// Located through the duration-agnostic pattern.
	got, err := series.Locate(dir, "aapl", "1 hour")
	require.NoError(t, err)
	assert.Equal(t, full, got)

	got, err = series.Locate(dir, "AAPL", "1_hour")
	require.NoError(t, err)
	assert.Equal(t, full, got)

	_, err = series.Locate(dir, "MSFT", "1 hour")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
