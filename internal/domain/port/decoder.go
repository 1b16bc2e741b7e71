package port

import "chip-counter/internal/domain/entity"

// ImageDecoder turns an encoded image into a Frame.
type ImageDecoder interface {
	// Decode fails with an error wrapping entity.ErrDecodeFailed for anything that is not an image.
	Decode(data []byte) (*entity.Frame, error)
}
