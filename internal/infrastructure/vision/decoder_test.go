package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"chip-counter/internal/domain/entity"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecoder_RejectsNonImages(t *testing.T) {
	d := NewDecoder()
	valid := encodePNG(t, testImage(32, 16))

	cases := map[string][]byte{
		"empty":     {},
		"garbage":   []byte("this is not an image at all"),
		"truncated": valid[:len(valid)/2],
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			frame, err := d.Decode(data)
			require.Nil(t, frame)
			require.ErrorIs(t, err, entity.ErrDecodeFailed)
		})
	}
}

func TestDecoder_PNG(t *testing.T) {
	frame, err := NewDecoder().Decode(encodePNG(t, testImage(32, 16)))
	require.NoError(t, err)
	require.Equal(t, 32, frame.Width)
	require.Equal(t, 16, frame.Height)
	require.Equal(t, entity.RGBChannels, frame.Channels)
	// pixel (3, 2)
	off := (2*32 + 3) * 3
	require.Equal(t, []byte{3, 2, 128}, frame.Pix[off:off+3])
}

func TestDecoder_JPEGAndGIF(t *testing.T) {
	var jbuf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jbuf, testImage(40, 30), &jpeg.Options{Quality: 90}))
	frame, err := NewDecoder().Decode(jbuf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 40, frame.Width)
	require.Equal(t, 30, frame.Height)

	var gbuf bytes.Buffer
	require.NoError(t, gif.Encode(&gbuf, testImage(8, 9), nil))
	frame, err = NewDecoder().Decode(gbuf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 8, frame.Width)
	require.Equal(t, 9, frame.Height)
}

func TestDecoder_MaxPixels(t *testing.T) {
	d := &Decoder{MaxPixels: 100}
	_, err := d.Decode(encodePNG(t, testImage(20, 20)))
	require.ErrorIs(t, err, entity.ErrDecodeFailed)

	_, err = d.Decode(encodePNG(t, testImage(10, 10)))
	require.NoError(t, err)
}
