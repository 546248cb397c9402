package main

import (
	"context"
	"flag"

	"github.com/myrern/Backtester-v2/config"
	"github.com/myrern/Backtester-v2/internal/fetch"
	"github.com/myrern/Backtester-v2/logger"

	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml")
	symbol := flag.String("symbol", "", "override request symbol")
	flag.Parse()

	// viper config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if *symbol != "" {
		cfg.Request.Symbol = *symbol
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	// run the one-shot acquisition
	if err := fetch.Run(context.Background(), cfg, log); err != nil {
		log.Fatal("fetch failed", zap.Error(err))
	}
}
