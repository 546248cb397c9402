package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/myrern/Backtester-v2/pkg/series"
	"github.com/myrern/Backtester-v2/pkg/storage/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestClient(t *testing.T) *sqlite.Client {
	t.Helper()
	client, err := sqlite.Open(filepath.Join(t.TempDir(), "bars.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func testBars(n int) []series.Bar {
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	bars := make([]series.Bar, n)
	for i := range bars {
		price := 100.0 + float64(i)
		bars[i] = series.Bar{
			Time:   base.Add(time.Duration(i) * time.Hour),
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price + 0.5,
			Volume: 1000 + float64(i),
		}
	}
	return bars
}

func TestInsertAndQueryBars(t *testing.T) {
	client := openTestClient(t)
	ctx := context.Background()
	bars := testBars(5)

	inserted, err := client.InsertBars(ctx, "AAPL", "1 hour", bars)
	require.NoError(t, err)
	assert.EqualValues(t, 5, inserted)

	records, err := client.BarsBetween(ctx, "AAPL", "1 hour",
		bars[0].Time, bars[len(bars)-1].Time)
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i := 1; i < len(records); i++ {
		assert.True(t, records[i-1].Time.Before(records[i].Time))
	}
	assert.Equal(t, bars[0].Open, records[0].Open)
	assert.Equal(t, bars[4].Close, records[4].Close)
}

func TestInsertBarsSkipsDuplicates(t *testing.T) {
	client := openTestClient(t)
	ctx := context.Background()
	bars := testBars(5)

	inserted, err := client.InsertBars(ctx, "AAPL", "1 hour", bars)
	require.NoError(t, err)
	assert.EqualValues(t, 5, inserted)

	// Overlapping re-archive: 3 old bars plus 2 new ones.
	more := testBars(7)[2:]
	inserted, err = client.InsertBars(ctx, "AAPL", "1 hour", more)
	require.NoError(t, err)
	assert.EqualValues(t, 2, inserted)

	count, err := client.CountBars(ctx, "AAPL", "1 hour")
	require.NoError(t, err)
	assert.EqualValues(t, 7, count)
}

func TestBarsAreKeyedBySymbolAndBarSize(t *testing.T) {
	client := openTestClient(t)
	ctx := context.Background()
	bars := testBars(3)

	_, err := client.InsertBars(ctx, "AAPL", "1 hour", bars)
	require.NoError(t, err)
	_, err = client.InsertBars(ctx, "AAPL", "5 mins", bars)
	require.NoError(t, err)
	_, err = client.InsertBars(ctx, "TSM", "1 hour", bars)
	require.NoError(t, err)

	count, err := client.CountBars(ctx, "AAPL", "1 hour")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	records, err := client.BarsBetween(ctx, "TSM", "1 hour", bars[0].Time, bars[2].Time)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestDeleteBarsBefore(t *testing.T) {
	client := openTestClient(t)
	ctx := context.Background()
	bars := testBars(5)

	_, err := client.InsertBars(ctx, "AAPL", "1 hour", bars)
	require.NoError(t, err)

	require.NoError(t, client.DeleteBarsBefore(ctx, bars[2].Time))

	count, err := client.CountBars(ctx, "AAPL", "1 hour")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestInsertNoBars(t *testing.T) {
	client := openTestClient(t)
	inserted, err := client.InsertBars(context.Background(), "AAPL", "1 hour", nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}
