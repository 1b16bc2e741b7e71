package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"chip-counter/internal/domain/entity"
	"chip-counter/internal/domain/port"
)

// SQLiteScanRepository stores count summaries in a single SQLite table.
type SQLiteScanRepository struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// NewSQLiteScanRepository opens (or creates) the database at dbPath and migrates it.
func NewSQLiteScanRepository(dbPath string) (*SQLiteScanRepository, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	r := &SQLiteScanRepository{conn: conn}
	if err := r.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return r, nil
}

func (r *SQLiteScanRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		chip_count INTEGER NOT NULL,
		counts TEXT NOT NULL,
		total_value REAL DEFAULT 0,
		width INTEGER DEFAULT 0,
		height INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at);
	`
	_, err := r.conn.Exec(schema)
	return err
}

// Save inserts rec and sets rec.ID. A zero CreatedAt is set to now.
func (r *SQLiteScanRepository) Save(ctx context.Context, rec *entity.ScanRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	counts := rec.Counts
	if counts == nil {
		counts = entity.NewLabelCounts()
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("failed to encode counts: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.conn.ExecContext(ctx, `
		INSERT INTO scans (source, chip_count, counts, total_value, width, height, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Source, rec.TotalCount, string(countsJSON), rec.TotalValue, rec.Width, rec.Height, rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read scan id: %w", err)
	}
	rec.ID = id
	return nil
}

// Recent returns the newest scans first. limit < 1 returns nothing.
func (r *SQLiteScanRepository) Recent(ctx context.Context, limit int) ([]entity.ScanRecord, error) {
	records := []entity.ScanRecord{}
	if limit < 1 {
		return records, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.conn.QueryContext(ctx, `
		SELECT id, source, chip_count, counts, total_value, width, height, created_at
		FROM scans ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec entity.ScanRecord
		var countsJSON string
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.TotalCount, &countsJSON, &rec.TotalValue, &rec.Width, &rec.Height, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.Counts = entity.NewLabelCounts()
		if err := json.Unmarshal([]byte(countsJSON), rec.Counts); err != nil {
			return nil, fmt.Errorf("scan %d: bad counts: %w", rec.ID, err)
		}
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *SQLiteScanRepository) Close() error {
	return r.conn.Close()
}

var _ port.ScanRepository = (*SQLiteScanRepository)(nil)
