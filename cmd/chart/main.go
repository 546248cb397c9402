package main

import (
	"flag"
	"strings"

	"github.com/myrern/Backtester-v2/config"
	"github.com/myrern/Backtester-v2/internal/chart"
	"github.com/myrern/Backtester-v2/logger"
	"github.com/myrern/Backtester-v2/pkg/series"

	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml")
	symbol := flag.String("symbol", "", "symbol to chart (defaults to request.symbol)")
	barSize := flag.String("bar-size", "", "bar size to chart (defaults to request.bar_size)")
	out := flag.String("out", "", "output HTML path (defaults to <data dir>/<symbol>_chart.html)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	sym := cfg.Request.Symbol
	if *symbol != "" {
		sym = *symbol
	}
	size := cfg.Request.BarSize
	if *barSize != "" {
		size = *barSize
	}

	path, err := series.Locate(cfg.Data.Dir, sym, size)
	if err != nil {
		log.Fatal("no data file for symbol", zap.String("symbol", sym), zap.String("bar_size", size), zap.Error(err))
	}
	ser, err := series.ReadCSV(path)
	if err != nil {
		log.Fatal("failed to read data file", zap.String("path", path), zap.Error(err))
	}
	if ser.Empty() {
		log.Fatal("data file has no bars", zap.String("path", path))
	}
	log.Info("data loaded",
		zap.String("path", path),
		zap.Int("bars", ser.Len()),
		zap.Time("from", ser.First().Time),
		zap.Time("to", ser.Last().Time))

	target := *out
	if target == "" {
		target = cfg.Data.Dir + "/" + strings.ToUpper(sym) + "_chart.html"
	}
	if err := chart.RenderFile(target, sym, ser); err != nil {
		log.Fatal("failed to render chart", zap.Error(err))
	}
	log.Info("chart written", zap.String("path", target))
}
