package storage

import (
	"context"
	"sync"
	"time"

	"chip-counter/internal/domain/entity"
	"chip-counter/internal/domain/port"
)

// MemoryScanRepository keeps the last Capacity scans in memory.
// It backs HISTORY_DB=:memory:, so history is lost on restart.
type MemoryScanRepository struct {
	Capacity int

	mu     sync.Mutex
	nextID int64
	scans  []entity.ScanRecord
}

func NewMemoryScanRepository(capacity int) *MemoryScanRepository {
	return &MemoryScanRepository{Capacity: capacity}
}

func (r *MemoryScanRepository) Save(ctx context.Context, rec *entity.ScanRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rec.ID = r.nextID
	r.scans = append(r.scans, *rec)
	if r.Capacity > 0 && len(r.scans) > r.Capacity {
		r.scans = r.scans[len(r.scans)-r.Capacity:]
	}
	return nil
}

func (r *MemoryScanRepository) Recent(ctx context.Context, limit int) ([]entity.ScanRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.ScanRecord{}
	for i := len(r.scans) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.scans[i])
	}
	return out, nil
}

func (r *MemoryScanRepository) Close() error {
	return nil
}

var _ port.ScanRepository = (*MemoryScanRepository)(nil)
