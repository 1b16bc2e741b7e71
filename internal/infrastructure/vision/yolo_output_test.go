package vision

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chip-counter/internal/domain/entity"
)

// yoloTensor lays anchors out the way a YOLOv8 head does: one row per attribute.
func yoloTensor(numClasses int, anchors [][]float32) []float32 {
	rows := 4 + numClasses
	out := make([]float32, rows*len(anchors))
	for i, a := range anchors {
		for r := 0; r < rows; r++ {
			out[r*len(anchors)+i] = a[r]
		}
	}
	return out
}

func TestDecodeYOLOv8(t *testing.T) {
	classes := []string{"Blue Chip", "Red Chip"}
	out := yoloTensor(2, [][]float32{
		{100, 100, 20, 20, 0.1, 0.9}, // red
		{300, 200, 40, 20, 0.8, 0.2}, // blue
		{500, 500, 10, 10, 0.3, 0.2}, // below threshold
	})
	// 1280x960 frame into a 640 input: side 1280, scale 2
	lb := makeLetterbox(1280, 960, 640)
	require.Equal(t, 1280, lb.side)
	require.Equal(t, float32(2), lb.scale)

	dets, err := decodeYOLOv8(out, 2, 3, 0.5, lb, 1280, 960, classes)
	require.NoError(t, err)
	require.Len(t, dets, 2)

	require.Equal(t, "Red Chip", dets[0].Label)
	require.Equal(t, entity.Box{X1: 180, Y1: 180, X2: 220, Y2: 220}, dets[0].Box)
	require.InDelta(t, 0.9, dets[0].Confidence, 1e-6)

	require.Equal(t, "Blue Chip", dets[1].Label)
	require.Equal(t, entity.Box{X1: 560, Y1: 380, X2: 640, Y2: 420}, dets[1].Box)
}

func TestDecodeYOLOv8_ClampsAndChecksShape(t *testing.T) {
	out := yoloTensor(1, [][]float32{{5, 5, 20, 20, 0.9}})
	dets, err := decodeYOLOv8(out, 1, 1, 0.5, makeLetterbox(100, 100, 100), 100, 100, []string{"Red Chip"})
	require.NoError(t, err)
	require.Equal(t, entity.Box{X1: 0, Y1: 0, X2: 15, Y2: 15}, dets[0].Box)

	_, err = decodeYOLOv8(out, 2, 1, 0.5, makeLetterbox(100, 100, 100), 100, 100, nil)
	require.Error(t, err)
}

func TestSuppress(t *testing.T) {
	dets := []entity.Detection{
		{Label: "Red Chip", Box: entity.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}, Confidence: 0.7},
		{Label: "Blue Chip", Box: entity.Box{X1: 1, Y1: 1, X2: 11, Y2: 11}, Confidence: 0.9},
		{Label: "Red Chip", Box: entity.Box{X1: 50, Y1: 50, X2: 60, Y2: 60}, Confidence: 0.6},
	}
	kept := suppress(dets, 0.45)
	require.Len(t, kept, 2)
	require.Equal(t, "Blue Chip", kept[0].Label)
	require.Equal(t, float32(50), kept[1].Box.X1)

	require.Equal(t, kept, suppress(dets, 0.45))
}

func TestClassName(t *testing.T) {
	require.Equal(t, "Red Chip", className(DefaultClasses, 3))
	require.Equal(t, "class_9", className(DefaultClasses, 9))
}
