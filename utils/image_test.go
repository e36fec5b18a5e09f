package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0, 255})
		}
	}
	return img
}

func TestEncodeImage_PngRoundTrip(t *testing.T) {
	img := testImage(32, 16)

	data, err := EncodeImage(img, "png", 0)
	require.NoError(t, err)

	out, err := DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), out.Bounds())

	r, g, _, _ := out.At(5, 7).RGBA()
	assert.Equal(t, uint32(5), r>>8)
	assert.Equal(t, uint32(7), g>>8)
}

func TestEncodeImage_Jpeg(t *testing.T) {
	data, err := EncodeImage(testImage(32, 32), "jpeg", 90)
	require.NoError(t, err)

	out, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 32, out.Bounds().Dx())
}

func TestEncodeImage_UnsupportedFormat(t *testing.T) {
	_, err := EncodeImage(testImage(2, 2), "gif", 0)
	assert.Error(t, err)
}

func TestDecodeImage_Garbage(t *testing.T) {
	_, err := DecodeImage([]byte("not an image"))
	assert.Error(t, err)
}
