package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/myrern/Backtester-v2/pkg/series"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// recordTimeLayout matches what the charting frontend expects.
const recordTimeLayout = "2006-01-02T15:04:05"

// BarRecord is one row of the query response.
type BarRecord struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Server serves persisted CSV series to the charting frontend.
type Server struct {
	dataDir string
	logger  *zap.Logger
	router  *gin.Engine
}

func New(dataDir string, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware())

	s := &Server{
		dataDir: dataDir,
		logger:  logger,
		router:  router,
	}
	router.GET("/data/:symbol", s.handleData)
	router.GET("/metadata", s.handleMetadata)
	return s
}

// Handler exposes the router, e.g. for an http.Server or tests.
func (s *Server) Handler() http.Handler { return s.router }

// corsMiddleware keeps the API reachable from a locally served frontend.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// handleData returns the ordered bar records for a symbol and bar size, or a
// 404 when no matching CSV exists. A filesystem miss is a not-found response,
// never a propagated error.
func (s *Server) handleData(c *gin.Context) {
	symbol := c.Param("symbol")
	barSize := c.DefaultQuery("bar_size", "1_hour")

	path, err := series.Locate(s.dataDir, symbol, barSize)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "CSV not found"})
			return
		}
		s.logger.Error("failed to locate data file", zap.String("symbol", symbol), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to locate data file"})
		return
	}

	ser, err := series.ReadCSV(path)
	if err != nil {
		s.logger.Error("failed to read data file", zap.String("path", path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read data file"})
		return
	}

	records := make([]BarRecord, 0, ser.Len())
	for _, b := range ser.Bars() {
		records = append(records, BarRecord{
			Time:   b.Time.UTC().Format(recordTimeLayout),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	c.JSON(http.StatusOK, records)
}

// handleMetadata serves arbitrary records from the metadata sidecar, or an
// empty result when the sidecar is absent.
func (s *Server) handleMetadata(c *gin.Context) {
	path := filepath.Join(s.dataDir, "metadata.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusOK, []any{})
			return
		}
		s.logger.Error("failed to read metadata", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read metadata"})
		return
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.logger.Error("metadata sidecar is not valid JSON", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid metadata file"})
		return
	}
	c.JSON(http.StatusOK, payload)
}
