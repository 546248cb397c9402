package chart_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/myrern/Backtester-v2/internal/chart"
	"github.com/myrern/Backtester-v2/pkg/feed"
	"github.com/myrern/Backtester-v2/pkg/series"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSeries(t *testing.T) *series.Series {
	t.Helper()
	ser, err := series.Assemble([]feed.BarEvent{
		{Date: "1700000000", Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{Date: "1700003600", Open: 10.5, High: 11.5, Low: 10, Close: 11, Volume: 110},
		{Date: "1700007200", Open: 11, High: 12, Low: 10.5, Close: 10, Volume: 90},
	})
	require.NoError(t, err)
	return ser
}

func TestRenderContainsAllThreeCharts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, chart.Render(&buf, "aapl", sampleSeries(t)))

	html := buf.String()
	assert.Contains(t, html, "AAPL - Price Chart")
	assert.Contains(t, html, "Volume")
	assert.Contains(t, html, "Returns (%)")
}

func TestRenderEmptySeries(t *testing.T) {
	empty, err := series.Assemble(nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.Error(t, chart.Render(&buf, "AAPL", empty))
	assert.Zero(t, buf.Len())
}

func TestRenderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "AAPL_chart.html")
	require.NoError(t, chart.RenderFile(path, "AAPL", sampleSeries(t)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}
