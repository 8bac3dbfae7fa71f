package imageprocessor

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCodecRoundTripsJPEGAndPNG(t *testing.T) {
	codec := NewCodec()
	src := solidImage(40, 20, color.RGBA{R: 200, G: 10, B: 10, A: 255})

	jpegBytes, err := codec.EncodeJPEG(src)
	require.NoError(t, err)
	img, format, err := codec.Decode(jpegBytes)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 40, img.Bounds().Dx())

	pngBytes, err := codec.EncodePNG(src)
	require.NoError(t, err)
	_, format, err = codec.Decode(pngBytes)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	codec := NewCodec()

	_, _, err := codec.Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, _, err = codec.Decode([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestDecodeFile(t *testing.T) {
	codec := NewCodec()
	data, err := codec.EncodePNG(solidImage(8, 8, color.White))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	img, raw, err := codec.DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, raw)
	assert.Equal(t, 8, img.Bounds().Dy())

	_, _, err = codec.DecodeFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestFitKeepsAspectRatio(t *testing.T) {
	codec := NewCodec()
	src := solidImage(400, 200, color.Black)

	out := codec.Fit(src, 100, 0)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 50, out.Bounds().Dy())

	same := codec.Fit(src, 1000, 1000)
	assert.Same(t, src, same)
}

func TestCropAndGrayscale(t *testing.T) {
	src := solidImage(10, 10, color.White)
	cropped := Crop(src, image.Rect(2, 3, 8, 5))
	assert.Equal(t, image.Rect(0, 0, 6, 2), cropped.Bounds())

	gray := Grayscale(cropped)
	assert.Equal(t, uint8(255), gray.GrayAt(0, 0).Y)
}
