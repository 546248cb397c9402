package sqlite

import (
	"context"
	"time"

	"github.com/myrern/Backtester-v2/pkg/series"

	"gorm.io/gorm/clause"
)

// BarRecord is one archived OHLCV bar. A (symbol, bar_size, time) triple is
// unique; re-archiving an overlapping range inserts only the new rows.
type BarRecord struct {
	ID      uint      `gorm:"primaryKey"`
	Symbol  string    `gorm:"size:16;not null;uniqueIndex:idx_bar_key"`
	BarSize string    `gorm:"size:16;not null;uniqueIndex:idx_bar_key"`
	Time    time.Time `gorm:"not null;uniqueIndex:idx_bar_key"`
	Open    float64   `gorm:"not null"`
	High    float64   `gorm:"not null"`
	Low     float64   `gorm:"not null"`
	Close   float64   `gorm:"not null"`
	Volume  float64   `gorm:"not null"`
}

func (BarRecord) TableName() string { return "bars" }

// InsertBars archives every bar of the series, skipping rows that are already
// present. It returns the number of newly inserted rows.
func (c *Client) InsertBars(ctx context.Context, symbol, barSize string, bars []series.Bar) (int64, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	records := make([]BarRecord, len(bars))
	for i, b := range bars {
		records[i] = BarRecord{
			Symbol:  symbol,
			BarSize: barSize,
			Time:    b.Time.UTC(),
			Open:    b.Open,
			High:    b.High,
			Low:     b.Low,
			Close:   b.Close,
			Volume:  b.Volume,
		}
	}

	tx := c.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "bar_size"},
			{Name: "time"},
		},
		DoNothing: true,
	}).Create(&records)

	if tx.Error != nil {
		return 0, tx.Error
	}
	return tx.RowsAffected, nil
}

// BarsBetween returns archived bars for a symbol and bar size within [from, to],
// ascending by time.
func (c *Client) BarsBetween(ctx context.Context, symbol, barSize string, from, to time.Time) ([]BarRecord, error) {
	var records []BarRecord
	err := c.DB.WithContext(ctx).
		Where("symbol = ? AND bar_size = ? AND time >= ? AND time <= ?", symbol, barSize, from, to).
		Order("time ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CountBars reports how many bars are archived for a symbol and bar size.
func (c *Client) CountBars(ctx context.Context, symbol, barSize string) (int64, error) {
	var count int64
	err := c.DB.WithContext(ctx).
		Model(&BarRecord{}).
		Where("symbol = ? AND bar_size = ?", symbol, barSize).
		Count(&count).Error
	return count, err
}

// DeleteBarsBefore removes archived bars older than the cutoff.
func (c *Client) DeleteBarsBefore(ctx context.Context, before time.Time) error {
	return c.DB.WithContext(ctx).
		Where("time < ?", before).
		Delete(&BarRecord{}).Error
}
