package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Client wraps the local SQLite bar archive.
type Client struct {
	DB *gorm.DB
}

// Open connects to the SQLite file at path (creating parent directories) and
// runs AutoMigrate for the bar table.
func Open(path string) (*Client, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: archive path is empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite: failed to create archive directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open %s: %w", path, err)
	}

	client := &Client{DB: db}
	if err := client.AutoMigrateBarRecord(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) AutoMigrateBarRecord() error {
	if err := c.DB.AutoMigrate(&BarRecord{}); err != nil {
		return fmt.Errorf("sqlite: auto-migrate bar table: %w", err)
	}
	return nil
}

func (c *Client) IsHealthy(ctx context.Context) bool {
	db, err := c.DB.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

func (c *Client) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return fmt.Errorf("sqlite: failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}
