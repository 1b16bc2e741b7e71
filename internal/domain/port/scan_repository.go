package port

import (
	"context"

	"chip-counter/internal/domain/entity"
)

// ScanRepository keeps a history of finished counts.
type ScanRepository interface {
	// Save stores rec and fills in its ID.
	Save(ctx context.Context, rec *entity.ScanRecord) error

	// Recent returns at most limit records, newest first.
	Recent(ctx context.Context, limit int) ([]entity.ScanRecord, error)

	Close() error
}
