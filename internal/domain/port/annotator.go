package port

import "chip-counter/internal/domain/entity"

// Annotator draws a counting result on top of its frame.
type Annotator interface {
	// Annotate returns a JPEG of the frame with boxes, labels and a count overlay.
	Annotate(frame *entity.Frame, result entity.AggregateResult) ([]byte, error)
}
