//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"github.com/cyclopcam/logs"

	"chip-counter/internal/domain/entity"
	"chip-counter/internal/domain/port"
)

var errNoGoCV = errors.New("gocv build tag is not enabled")

// YOLODetector is unavailable without OpenCV. Build with -tags gocv.
type YOLODetector struct {
	Classes      []string
	InputSize    int
	NMSThreshold float32
}

// NewYOLODetector always fails in builds without the gocv tag.
func NewYOLODetector(log logs.Log, opts YOLOOptions) (*YOLODetector, error) {
	_ = log
	_ = opts.withDefaults()
	return nil, errNoGoCV
}

func (d *YOLODetector) Detect(ctx context.Context, frame *entity.Frame, threshold float32) ([]entity.Detection, error) {
	_ = ctx
	_ = frame
	_ = threshold
	return nil, errNoGoCV
}

func (d *YOLODetector) Close() error {
	return nil
}

var _ port.Detector = (*YOLODetector)(nil)
