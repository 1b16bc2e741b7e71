package entity

import "time"

// ScanRecord is the persisted summary of one successful count.
// Images are never stored.
type ScanRecord struct {
	ID         int64        `json:"id"`
	Source     string       `json:"source"` // http, ws, telegram, cli
	TotalCount int          `json:"chip_count"`
	Counts     *LabelCounts `json:"counts_by_color"`
	TotalValue float64      `json:"total_value"`
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	CreatedAt  time.Time    `json:"created_at"`
}
