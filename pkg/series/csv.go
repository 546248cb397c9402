package series

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Persisted CSV schema: one file per (symbol, duration, bar size), header
// date,open,high,low,close,volume, date ISO-8601, rows ascending, no duplicate
// timestamps.
var csvHeader = []string{"date", "open", "high", "low", "close", "volume"}

const csvTimeLayout = time.RFC3339

// FileName builds the canonical CSV name for a fetched series,
// e.g. AAPL_5_D_1_hour.csv.
func FileName(symbol, duration, barSize string) string {
	return fmt.Sprintf("%s_%s_%s.csv",
		strings.ToUpper(symbol),
		strings.ReplaceAll(duration, " ", "_"),
		strings.ReplaceAll(barSize, " ", "_"))
}

// Locate finds the CSV for a (symbol, bar size) pair inside dir, regardless of
// the duration segment in the file name. It returns os.ErrNotExist when no file
// matches.
func Locate(dir, symbol, barSize string) (string, error) {
	sym := strings.ToUpper(symbol)
	size := strings.ReplaceAll(barSize, " ", "_")

	exact := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", sym, size))
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("%s_*_%s.csv", sym, size)))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no data for %s %s: %w", sym, size, os.ErrNotExist)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// WriteCSV persists the series atomically: rows go to a temp file that is
// renamed over the target only after a complete write, so a failed request
// never leaves a partial CSV behind.
func WriteCSV(path string, s *Series) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name()) // no-op after a successful rename
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range s.bars {
		row := []string{
			b.Time.UTC().Format(csvTimeLayout),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadCSV loads a persisted series. The returns column is derived, not stored,
// so reading recomputes it; a write/read round trip yields an equal series.
func ReadCSV(path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return FromBars(nil), nil
	}
	if !isHeader(records[0]) {
		return nil, fmt.Errorf("%s: unexpected header %v", path, records[0])
	}

	bars := make([]Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(csvHeader) {
			return nil, fmt.Errorf("%s: row %d has %d columns", path, i+2, len(rec))
		}
		ts, err := NormalizeDate(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, i+2, err)
		}
		vals := make([]float64, 5)
		for j := 1; j < len(rec); j++ {
			v, err := strconv.ParseFloat(rec[j], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d column %s: %w", path, i+2, csvHeader[j], err)
			}
			vals[j-1] = v
		}
		bars = append(bars, Bar{
			Time:   ts,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return FromBars(bars), nil
}

func isHeader(rec []string) bool {
	if len(rec) != len(csvHeader) {
		return false
	}
	for i, col := range csvHeader {
		if !strings.EqualFold(strings.TrimSpace(rec[i]), col) {
			return false
		}
	}
	return true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
