package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/myrern/Backtester-v2/internal/server"
	"github.com/myrern/Backtester-v2/pkg/feed"
	"github.com/myrern/Backtester-v2/pkg/series"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeSampleCSV(t *testing.T, dir string) {
	t.Helper()
	ser, err := series.Assemble([]feed.BarEvent{
		{Date: "1700000000", Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{Date: "1700003600", Open: 10.5, High: 11.5, Low: 10, Close: 11, Volume: 110},
	})
	require.NoError(t, err)
	path := filepath.Join(dir, series.FileName("AAPL", "5 D", "1 hour"))
	require.NoError(t, series.WriteCSV(path, ser))
}

func doRequest(t *testing.T, dir, target string) *httptest.ResponseRecorder {
	t.Helper()
	srv := server.New(dir, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestDataEndpointReturnsRecords(t *testing.T) {
	dir := t.TempDir()
	writeSampleCSV(t, dir)

	rec := doRequest(t, dir, "/data/AAPL?bar_size=1_hour")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []server.BarRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "2023-11-14T22:13:20", records[0].Time)
	assert.Equal(t, 10.5, records[0].Close)
	assert.Equal(t, 11.0, records[1].Close)
}

func TestDataEndpointDefaultsBarSize(t *testing.T) {
	dir := t.TempDir()
	writeSampleCSV(t, dir)

	rec := doRequest(t, dir, "/data/aapl")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDataEndpointMissingFile(t *testing.T) {
	rec := doRequest(t, t.TempDir(), "/data/MSFT?bar_size=1_hour")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CSV not found", body["error"])
}

func TestMetadataEndpointAbsentSidecar(t *testing.T) {
	rec := doRequest(t, t.TempDir(), "/metadata")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestMetadataEndpointServesSidecar(t *testing.T) {
	dir := t.TempDir()
	sidecar := `[{"symbol":"AAPL","note":"hourly refresh"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(sidecar), 0644))

	rec := doRequest(t, dir, "/metadata")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, sidecar, rec.Body.String())
}

func TestCORSHeaders(t *testing.T) {
	rec := doRequest(t, t.TempDir(), "/metadata")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
