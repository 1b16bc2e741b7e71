package port

import (
	"context"

	"chip-counter/internal/domain/entity"
)

// Detector finds chips in a frame.
// Implementations must be safe for concurrent use and deterministic for the
// same frame, threshold and weights. Failures are returned, never retried.
type Detector interface {
	// Detect returns detections with confidence >= threshold, boxes in frame pixels.
	Detect(ctx context.Context, frame *entity.Frame, threshold float32) ([]entity.Detection, error)

	// Close releases the model and any native resources.
	Close() error
}
