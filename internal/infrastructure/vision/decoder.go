package vision

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"chip-counter/internal/domain/entity"
	"chip-counter/internal/domain/port"
)

// DefaultMaxPixels bounds the decoded size of a single image (about 50 megapixels).
const DefaultMaxPixels = 50_000_000

// Decoder decodes JPEG, PNG, GIF, BMP, TIFF and WebP into RGB frames,
// applying EXIF orientation so phone photos come out upright.
type Decoder struct {
	MaxPixels int
}

func NewDecoder() *Decoder {
	return &Decoder{MaxPixels: DefaultMaxPixels}
}

// Decode never returns a frame together with an error. Every failure wraps entity.ErrDecodeFailed.
func (d *Decoder) Decode(data []byte) (*entity.Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", entity.ErrDecodeFailed)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrDecodeFailed, err)
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return nil, fmt.Errorf("%w: %s image has size %dx%d", entity.ErrDecodeFailed, format, cfg.Width, cfg.Height)
	}
	if d.MaxPixels > 0 && cfg.Width*cfg.Height > d.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", entity.ErrDecodeFailed, cfg.Width, cfg.Height, d.MaxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrDecodeFailed, format, err)
	}
	frame, err := entity.FrameFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrDecodeFailed, err)
	}
	return frame, nil
}

var _ port.ImageDecoder = (*Decoder)(nil)
