package render

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"chip-counter/internal/domain/entity"
	"chip-counter/internal/domain/port"
	"chip-counter/internal/infrastructure/vision"
)

// Annotator draws detection boxes, per-box labels and a summary banner.
type Annotator struct {
	LineWidth   float64
	JPEGQuality int
	// MaxSide shrinks the output when the frame is larger. Zero keeps the original size.
	MaxSide int
}

func NewAnnotator() *Annotator {
	return &Annotator{
		LineWidth:   2,
		JPEGQuality: 90,
		MaxSide:     1600,
	}
}

// Annotate returns a JPEG of the frame with the result drawn on top.
func (a *Annotator) Annotate(frame *entity.Frame, result entity.AggregateResult) ([]byte, error) {
	if frame == nil {
		return nil, fmt.Errorf("nil frame")
	}
	dc := gg.NewContextForImage(frame.Image())
	dc.SetLineWidth(a.LineWidth)

	for _, d := range result.Detections {
		b := d.Box
		c := vision.ColorOf(d.Label)
		dc.SetColor(c)
		dc.DrawRectangle(float64(b.X1), float64(b.Y1), float64(b.Width()), float64(b.Height()))
		dc.Stroke()

		label := fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
		a.drawTag(dc, label, float64(b.X1), float64(b.Y1), c)
	}

	a.drawTag(dc, Summary(result), 4, 4, color.RGBA{A: 255})

	img := dc.Image()
	if a.MaxSide > 0 && (frame.Width > a.MaxSide || frame.Height > a.MaxSide) {
		img = imaging.Fit(img, a.MaxSide, a.MaxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(a.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// drawTag writes text on a filled background whose top-left corner is (x, y),
// lifted above the point when there is room.
func (a *Annotator) drawTag(dc *gg.Context, text string, x, y float64, bg color.RGBA) {
	w, h := dc.MeasureString(text)
	pad := 2.0
	top := y - h - 2*pad
	if top < 0 {
		top = y
	}
	dc.SetColor(bg)
	dc.DrawRectangle(x, top, w+2*pad, h+2*pad)
	dc.Fill()

	dc.SetColor(textColor(bg))
	dc.DrawStringAnchored(text, x+pad, top+pad, 0, 1)
}

func textColor(bg color.RGBA) color.Color {
	// perceived brightness, ITU-R BT.601
	if 299*int(bg.R)+587*int(bg.G)+114*int(bg.B) > 128_000 {
		return color.Black
	}
	return color.White
}

// Summary is the one-line overlay text, e.g. "5 chips: Red Chip 3, Blue Chip 2".
func Summary(result entity.AggregateResult) string {
	s := fmt.Sprintf("%d chips", result.TotalCount)
	if result.TotalCount == 1 {
		s = "1 chip"
	}
	sep := ": "
	result.Counts.Each(func(label string, n int) {
		s += fmt.Sprintf("%s%s %d", sep, label, n)
		sep = ", "
	})
	return s
}

var _ port.Annotator = (*Annotator)(nil)
