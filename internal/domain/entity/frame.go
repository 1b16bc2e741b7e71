package entity

import (
	"fmt"
	"image"
)

// RGBChannels is the channel depth of every decoded frame.
const RGBChannels = 3

// Frame is a decoded image ready for inference.
// Pixels are packed RGB, row-major, with a stride of Width*Channels.
type Frame struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// NewFrame wraps packed RGB pixels. It refuses empty dimensions and short buffers,
// so a Frame that exists is always usable.
func NewFrame(width, height int, pix []byte) (*Frame, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if len(pix) != width*height*RGBChannels {
		return nil, fmt.Errorf("frame buffer is %d bytes, expected %d", len(pix), width*height*RGBChannels)
	}
	return &Frame{
		Width:    width,
		Height:   height,
		Channels: RGBChannels,
		Pix:      pix,
	}, nil
}

// FrameFromImage copies any image.Image into a packed RGB frame. Alpha is dropped.
func FrameFromImage(img image.Image) (*Frame, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("invalid frame size %dx%d", w, h)
	}
	pix := make([]byte, w*h*RGBChannels)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			pix[i] = uint8(r >> 8)
			pix[i+1] = uint8(g >> 8)
			pix[i+2] = uint8(bl >> 8)
			i += RGBChannels
		}
	}
	return NewFrame(w, h, pix)
}

// Stride is the number of bytes in one row.
func (f *Frame) Stride() int {
	return f.Width * f.Channels
}

// Bounds returns the frame rectangle, anchored at the origin.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Image returns an RGBA copy of the frame for drawing and encoding.
func (f *Frame) Image() *image.RGBA {
	img := image.NewRGBA(f.Bounds())
	src := 0
	dst := 0
	for n := f.Width * f.Height; n > 0; n-- {
		img.Pix[dst] = f.Pix[src]
		img.Pix[dst+1] = f.Pix[src+1]
		img.Pix[dst+2] = f.Pix[src+2]
		img.Pix[dst+3] = 0xff
		src += f.Channels
		dst += 4
	}
	return img
}

// Crop copies the region [x1,x2) x [y1,y2) into a new frame.
// The region is clipped to the frame; an empty result is an error.
func (f *Frame) Crop(x1, y1, x2, y2 int) (*Frame, error) {
	r := image.Rect(x1, y1, x2, y2).Intersect(f.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("crop %v is outside frame %dx%d", image.Rect(x1, y1, x2, y2), f.Width, f.Height)
	}
	w, h := r.Dx(), r.Dy()
	pix := make([]byte, w*h*f.Channels)
	rowBytes := w * f.Channels
	for y := 0; y < h; y++ {
		src := (r.Min.Y+y)*f.Stride() + r.Min.X*f.Channels
		copy(pix[y*rowBytes:(y+1)*rowBytes], f.Pix[src:src+rowBytes])
	}
	return NewFrame(w, h, pix)
}
