package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Feed    FeedConfig    `mapstructure:"feed"`
	Request RequestConfig `mapstructure:"request"`
	Data    DataConfig    `mapstructure:"data"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
}

// FeedConfig describes the upstream market-data session.
type FeedConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	ClientID         int           `mapstructure:"client_id"` // must be unique per concurrent session
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

// RequestConfig describes the one historical-data request the fetch tool issues.
type RequestConfig struct {
	Symbol       string `mapstructure:"symbol"`
	SecurityType string `mapstructure:"security_type"` // fixed to "STK" for this toolkit
	Exchange     string `mapstructure:"exchange"`
	Currency     string `mapstructure:"currency"`
	Duration     string `mapstructure:"duration"` // lookback window, e.g. "5 D"
	BarSize      string `mapstructure:"bar_size"` // e.g. "1 hour"
	WhatToShow   string `mapstructure:"what_to_show"`
	Timeout      int    `mapstructure:"timeout_seconds"`
}

// DataConfig locates the persisted CSV files and the metadata sidecar.
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// ArchiveConfig configures the optional local SQLite bar archive.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Load loads application configuration using Viper.
// It reads from the given config file (or ./config.yaml when path is empty)
// and overrides with environment variables (e.g., FEED_HOST, REQUEST_SYMBOL).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	// Support environment variables with dot notation (e.g., FEED_HOST)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Defaults plus env overrides are enough to run; only a broken file is fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("feed.host", "127.0.0.1")
	v.SetDefault("feed.port", 7497)
	v.SetDefault("feed.client_id", 1)
	v.SetDefault("feed.handshake_timeout", 5*time.Second)

	v.SetDefault("request.symbol", "AAPL")
	v.SetDefault("request.security_type", "STK")
	v.SetDefault("request.exchange", "SMART")
	v.SetDefault("request.currency", "USD")
	v.SetDefault("request.duration", "5 D")
	v.SetDefault("request.bar_size", "1 hour")
	v.SetDefault("request.what_to_show", "TRADES")
	v.SetDefault("request.timeout_seconds", 30)

	v.SetDefault("data.dir", "data")

	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.path", "data/bars.db")

	v.SetDefault("server.addr", ":8000")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.environment", "dev")
}
