package fetch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/myrern/Backtester-v2/config"
	"github.com/myrern/Backtester-v2/pkg/feed"
	"github.com/myrern/Backtester-v2/pkg/series"
	"github.com/myrern/Backtester-v2/pkg/storage/sqlite"

	"go.uber.org/zap"
)

// historicalReqID correlates the single request this tool issues per run.
const historicalReqID = 1

// Run acquires one (symbol, duration, bar size) series from the feed and
// persists it: a CSV file is the source of truth, the SQLite archive is
// best-effort. A timed-out or failed request persists nothing.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	sess := feed.NewSession(cfg.Feed, logger)
	if err := sess.Open(); err != nil {
		return fmt.Errorf("failed to open feed session: %w", err)
	}
	defer sess.Close()

	req := feed.HistoricalRequest{
		ReqID: historicalReqID,
		Contract: feed.Contract{
			Symbol:       cfg.Request.Symbol,
			SecurityType: cfg.Request.SecurityType,
			Exchange:     cfg.Request.Exchange,
			Currency:     cfg.Request.Currency,
		},
		Duration:   cfg.Request.Duration,
		BarSize:    cfg.Request.BarSize,
		WhatToShow: cfg.Request.WhatToShow,
	}
	if err := sess.Submit(req); err != nil {
		return fmt.Errorf("failed to submit historical request: %w", err)
	}

	timeout := time.Duration(cfg.Request.Timeout) * time.Second
	res := sess.Wait(req.ReqID, timeout)
	switch res.Status {
	case feed.StatusComplete:
		// fall through to assembly
	case feed.StatusTimedOut:
		return fmt.Errorf("historical request timed out after %s; nothing persisted", timeout)
	case feed.StatusFailed:
		return fmt.Errorf("historical request failed: %w", res.Err)
	default:
		return fmt.Errorf("unexpected request status %s", res.Status)
	}

	ser, err := series.Assemble(res.Events)
	if err != nil {
		return fmt.Errorf("failed to assemble series: %w", err)
	}
	if ser.Empty() {
		logger.Warn("request completed with zero bars; nothing persisted",
			zap.String("symbol", cfg.Request.Symbol))
		return nil
	}
	logger.Info("series assembled",
		zap.String("symbol", cfg.Request.Symbol),
		zap.Int("bars", ser.Len()),
		zap.Time("first", ser.First().Time),
		zap.Time("last", ser.Last().Time))

	path := filepath.Join(cfg.Data.Dir,
		series.FileName(cfg.Request.Symbol, cfg.Request.Duration, cfg.Request.BarSize))
	if err := series.WriteCSV(path, ser); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	logger.Info("data saved", zap.String("path", path), zap.Int("rows", ser.Len()))

	if cfg.Archive.Enabled {
		archiveBars(ctx, cfg, logger, ser)
	}
	return nil
}

// archiveBars mirrors the series into the SQLite archive. Failures are logged,
// not propagated: the CSV already holds the data.
func archiveBars(ctx context.Context, cfg *config.Config, logger *zap.Logger, ser *series.Series) {
	client, err := sqlite.Open(cfg.Archive.Path)
	if err != nil {
		logger.Warn("failed to open bar archive", zap.String("path", cfg.Archive.Path), zap.Error(err))
		return
	}
	defer client.Close()

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	inserted, err := client.InsertBars(dbCtx, cfg.Request.Symbol, cfg.Request.BarSize, ser.Bars())
	if err != nil {
		logger.Warn("failed to archive bars", zap.Error(err))
		return
	}
	logger.Info("bars archived",
		zap.String("path", cfg.Archive.Path),
		zap.Int64("inserted", inserted),
		zap.Int("total", ser.Len()))
}
