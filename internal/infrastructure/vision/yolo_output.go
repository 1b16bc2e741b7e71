package vision

import (
	"fmt"
	"sort"

	"chip-counter/internal/domain/entity"
)

// letterbox describes how a frame was padded and scaled into the square model input.
// The frame sits at the top-left of a side x side square which is then resized to the input size.
type letterbox struct {
	side  int     // square side in frame pixels, max(width, height)
	scale float32 // frame pixels per model pixel
}

func makeLetterbox(width, height, inputSize int) letterbox {
	side := width
	if height > side {
		side = height
	}
	return letterbox{side: side, scale: float32(side) / float32(inputSize)}
}

// decodeYOLOv8 reads a YOLOv8 detection head, laid out as [4+numClasses][numAnchors]
// (cx, cy, w, h, then one score per class), and returns every anchor whose best class
// score is >= threshold, mapped back into frame coordinates.
func decodeYOLOv8(out []float32, numClasses, numAnchors int, threshold float32, lb letterbox, width, height int, classes []string) ([]entity.Detection, error) {
	rows := 4 + numClasses
	if len(out) < rows*numAnchors {
		return nil, fmt.Errorf("model output has %d values, expected %d", len(out), rows*numAnchors)
	}
	at := func(row, i int) float32 {
		return out[row*numAnchors+i]
	}

	var dets []entity.Detection
	for i := 0; i < numAnchors; i++ {
		best := -1
		var bestScore float32
		for c := 0; c < numClasses; c++ {
			if s := at(4+c, i); best < 0 || s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || bestScore < threshold {
			continue
		}
		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		box := entity.Box{
			X1: (cx - w/2) * lb.scale,
			Y1: (cy - h/2) * lb.scale,
			X2: (cx + w/2) * lb.scale,
			Y2: (cy + h/2) * lb.scale,
		}
		dets = append(dets, entity.Detection{
			Label:      className(classes, best),
			Box:        box.Clamp(width, height).Normalize(),
			Confidence: bestScore,
		})
	}
	return dets, nil
}

func className(classes []string, id int) string {
	if id >= 0 && id < len(classes) {
		return classes[id]
	}
	return fmt.Sprintf("class_%d", id)
}

// suppress runs class-agnostic non-maximum suppression: a chip has exactly one colour,
// so two overlapping boxes of different classes are still the same chip.
// The survivors are ordered by descending confidence, ties broken by position.
func suppress(dets []entity.Detection, iouThreshold float32) []entity.Detection {
	sorted := append([]entity.Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Box.Y1 != b.Box.Y1 {
			return a.Box.Y1 < b.Box.Y1
		}
		return a.Box.X1 < b.Box.X1
	})

	keep := make([]entity.Detection, 0, len(sorted))
	for _, d := range sorted {
		overlaps := false
		for _, k := range keep {
			if d.Box.IoU(k.Box) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			keep = append(keep, d)
		}
	}
	return keep
}
