package entity

import (
	"encoding/json"
	"fmt"

	"github.com/chewxy/math32"
)

// Box is an axis-aligned bounding box in absolute pixel coordinates.
// On the wire it is the array [x1, y1, x2, y2].
type Box struct {
	X1 float32
	Y1 float32
	X2 float32
	Y2 float32
}

// Normalize orders the corners so that X1 <= X2 and Y1 <= Y2.
func (b Box) Normalize() Box {
	return Box{
		X1: math32.Min(b.X1, b.X2),
		Y1: math32.Min(b.Y1, b.Y2),
		X2: math32.Max(b.X1, b.X2),
		Y2: math32.Max(b.Y1, b.Y2),
	}
}

// Clamp clips the box to a width x height image.
func (b Box) Clamp(width, height int) Box {
	w, h := float32(width), float32(height)
	return Box{
		X1: math32.Max(0, math32.Min(b.X1, w)),
		Y1: math32.Max(0, math32.Min(b.Y1, h)),
		X2: math32.Max(0, math32.Min(b.X2, w)),
		Y2: math32.Max(0, math32.Min(b.Y2, h)),
	}
}

func (b Box) Width() float32 {
	return b.X2 - b.X1
}

func (b Box) Height() float32 {
	return b.Y2 - b.Y1
}

func (b Box) Area() float32 {
	return math32.Max(0, b.Width()) * math32.Max(0, b.Height())
}

// Offset moves the box by (dx, dy).
func (b Box) Offset(dx, dy float32) Box {
	return Box{X1: b.X1 + dx, Y1: b.Y1 + dy, X2: b.X2 + dx, Y2: b.Y2 + dy}
}

// IoU returns intersection over union, or 0 when both boxes are empty.
func (b Box) IoU(o Box) float32 {
	inter := Box{
		X1: math32.Max(b.X1, o.X1),
		Y1: math32.Max(b.Y1, o.Y1),
		X2: math32.Min(b.X2, o.X2),
		Y2: math32.Min(b.Y2, o.Y2),
	}.Area()
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float32{b.X1, b.Y1, b.X2, b.Y2})
}

func (b *Box) UnmarshalJSON(data []byte) error {
	var xyxy []float32
	if err := json.Unmarshal(data, &xyxy); err != nil {
		return fmt.Errorf("box: %w", err)
	}
	if len(xyxy) != 4 {
		return fmt.Errorf("box: expected 4 coordinates, got %d", len(xyxy))
	}
	*b = Box{X1: xyxy[0], Y1: xyxy[1], X2: xyxy[2], Y2: xyxy[3]}
	return nil
}

// Detection is one object reported by a detector.
type Detection struct {
	Label      string  `json:"label"`
	Box        Box     `json:"box"`
	Confidence float32 `json:"confidence"`
}
