//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	"github.com/cyclopcam/logs"
	"gocv.io/x/gocv"

	"chip-counter/internal/domain/entity"
	"chip-counter/internal/domain/port"
)

// YOLODetector runs a YOLOv8 ONNX export through the OpenCV DNN module.
// A gocv Net is not reentrant, so the detector owns a pool of independently
// loaded nets and each Detect call borrows one.
type YOLODetector struct {
	Classes      []string
	InputSize    int
	NMSThreshold float32

	log       logs.Log
	nets      chan *gocv.Net
	loaded    int
	closeOnce sync.Once
}

// NewYOLODetector loads opts.Workers copies of the model. A missing or unreadable model is an error.
func NewYOLODetector(log logs.Log, opts YOLOOptions) (*YOLODetector, error) {
	opts = opts.withDefaults()
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", opts.ModelPath)
	}

	d := &YOLODetector{
		Classes:      opts.Classes,
		InputSize:    opts.InputSize,
		NMSThreshold: opts.NMSThreshold,
		log:          log,
		nets:         make(chan *gocv.Net, opts.Workers),
	}
	for i := 0; i < opts.Workers; i++ {
		net := gocv.ReadNetFromONNX(opts.ModelPath)
		if net.Empty() {
			net.Close()
			d.Close()
			return nil, fmt.Errorf("failed to load network from %s", opts.ModelPath)
		}
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
		d.nets <- &net
		d.loaded++
	}
	log.Infof("Loaded %v (%d classes, input %dx%d, %d workers)", opts.ModelPath, len(opts.Classes), opts.InputSize, opts.InputSize, opts.Workers)
	return d, nil
}

func (d *YOLODetector) Detect(ctx context.Context, frame *entity.Frame, threshold float32) ([]entity.Detection, error) {
	if frame == nil {
		return nil, errors.New("nil frame")
	}

	var net *gocv.Net
	select {
	case net = <-d.nets:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { d.nets <- net }()

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Pix)
	if err != nil {
		return nil, fmt.Errorf("wrap frame: %w", err)
	}
	defer mat.Close()

	// pad bottom/right to a square so the model sees undistorted chips
	lb := makeLetterbox(frame.Width, frame.Height, d.InputSize)
	square := gocv.NewMat()
	defer square.Close()
	gocv.CopyMakeBorder(mat, &square, 0, lb.side-frame.Height, 0, lb.side-frame.Width, gocv.BorderConstant, color.RGBA{R: 114, G: 114, B: 114})

	// frames are already RGB, so no channel swap
	blob := gocv.BlobFromImage(square, 1.0/255.0, image.Pt(d.InputSize, d.InputSize), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	net.SetInput(blob, "")
	out := net.Forward("")
	defer out.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sizes := out.Size()
	if len(sizes) != 3 || sizes[1] <= 4 {
		return nil, fmt.Errorf("unexpected model output shape %v", sizes)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read model output: %w", err)
	}

	dets, err := decodeYOLOv8(data, sizes[1]-4, sizes[2], threshold, lb, frame.Width, frame.Height, d.Classes)
	if err != nil {
		return nil, err
	}
	return suppress(dets, d.NMSThreshold), nil
}

// Close waits for in-flight detections and frees every net.
func (d *YOLODetector) Close() error {
	d.closeOnce.Do(func() {
		for i := 0; i < d.loaded; i++ {
			net := <-d.nets
			net.Close()
		}
	})
	return nil
}

var _ port.Detector = (*YOLODetector)(nil)
