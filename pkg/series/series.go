package series

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/myrern/Backtester-v2/pkg/feed"
)

// Bar is one OHLCV sample with a normalized UTC timestamp.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series is an immutable, chronologically sorted bar sequence with a derived
// cumulative-returns column. Accessors return copies; transformations produce
// new values.
type Series struct {
	bars    []Bar
	returns []float64
}

// MalformedBarError reports a bar event that failed schema or validity checks
// during assembly.
type MalformedBarError struct {
	Index  int
	Date   string
	Reason string
}

func (e *MalformedBarError) Error() string {
	return fmt.Sprintf("series: malformed bar %d (date=%q): %s", e.Index, e.Date, e.Reason)
}

// Feed date string layouts, tried in order after the epoch-seconds form.
var dateLayouts = []string{
	"20060102 15:04:05",
	"20060102",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// NormalizeDate converts a feed date — epoch seconds or a date string — to UTC.
func NormalizeDate(date string) (time.Time, error) {
	trimmed := strings.TrimSpace(date)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	// Epoch-seconds form: all digits. Short digit runs like "20250102" are
	// calendar dates, which the layout list handles first.
	if isDigits(trimmed) && len(trimmed) > 8 {
		secs, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC(), nil
		}
	}
	if isDigits(trimmed) {
		secs, _ := strconv.ParseInt(trimmed, 10, 64)
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Assemble converts a raw, arrival-ordered bar event buffer into a Series:
// timestamps are normalized and sorted ascending, and two events normalizing to
// the same instant collapse to the later-arriving one (last-write-wins, a
// deliberate simplification). An empty input yields an empty series, no error.
func Assemble(events []feed.BarEvent) (*Series, error) {
	byTime := make(map[int64]Bar, len(events))
	for i, ev := range events {
		ts, err := NormalizeDate(ev.Date)
		if err != nil {
			return nil, &MalformedBarError{Index: i, Date: ev.Date, Reason: err.Error()}
		}
		if reason := validate(ev); reason != "" {
			return nil, &MalformedBarError{Index: i, Date: ev.Date, Reason: reason}
		}
		byTime[ts.Unix()] = Bar{
			Time:   ts,
			Open:   ev.Open,
			High:   ev.High,
			Low:    ev.Low,
			Close:  ev.Close,
			Volume: ev.Volume,
		}
	}

	bars := make([]Bar, 0, len(byTime))
	for _, b := range byTime {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	return newSeries(bars), nil
}

// FromBars builds a Series from already-normalized bars, e.g. rows read back
// from a persisted CSV. Bars are sorted; duplicate timestamps keep the last.
func FromBars(bars []Bar) *Series {
	byTime := make(map[int64]Bar, len(bars))
	for _, b := range bars {
		b.Time = b.Time.UTC()
		byTime[b.Time.Unix()] = b
	}
	sorted := make([]Bar, 0, len(byTime))
	for _, b := range byTime {
		sorted = append(sorted, b)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })
	return newSeries(sorted)
}

func newSeries(bars []Bar) *Series {
	returns := make([]float64, len(bars))
	if len(bars) > 0 {
		base := bars[0].Close
		for i, b := range bars {
			returns[i] = b.Close/base - 1
		}
	}
	return &Series{bars: bars, returns: returns}
}

func validate(ev feed.BarEvent) string {
	for _, v := range [...]float64{ev.Open, ev.High, ev.Low, ev.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "non-finite price"
		}
	}
	if math.IsNaN(ev.Volume) || math.IsInf(ev.Volume, 0) {
		return "non-finite volume"
	}
	if ev.Volume < 0 {
		return "negative volume"
	}
	return ""
}

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.bars) }

// Empty reports whether the series has no bars. Callers must check this before
// deriving a headline price: returns on an empty series are empty, not an error.
func (s *Series) Empty() bool { return len(s.bars) == 0 }

// Bars returns a copy of the sorted bars.
func (s *Series) Bars() []Bar {
	return append([]Bar(nil), s.bars...)
}

// Bar returns the bar at index i.
func (s *Series) Bar(i int) Bar { return s.bars[i] }

// Returns returns a copy of the cumulative-returns column,
// returns[i] = close[i]/close[0] - 1.
func (s *Series) Returns() []float64 {
	return append([]float64(nil), s.returns...)
}

// First and Last expose the series bounds; both panic on an empty series.
func (s *Series) First() Bar { return s.bars[0] }
func (s *Series) Last() Bar  { return s.bars[len(s.bars)-1] }
