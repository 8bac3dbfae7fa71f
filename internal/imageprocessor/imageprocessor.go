// Package imageprocessor is the image decode/encode backend shared by the document and face pipelines.
package imageprocessor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrEmptyImage is returned for zero-length input or a zero-sized image.
var ErrEmptyImage = errors.New("empty image")

// Codec is the capability the pipelines use to turn bytes into pixels and back.
type Codec interface {
	Decode(data []byte) (image.Image, string, error)
	DecodeFile(path string) (image.Image, []byte, error)
	EncodeJPEG(img image.Image) ([]byte, error)
	EncodePNG(img image.Image) ([]byte, error)
	Fit(img image.Image, maxW, maxH int) image.Image
}

// StdCodec decodes JPEG, PNG, GIF, BMP and WebP.
type StdCodec struct {
	JPEGQuality int
}

// NewCodec returns the default codec.
func NewCodec() *StdCodec {
	return &StdCodec{JPEGQuality: 92}
}

// Decode returns the image and the detected format name.
func (c *StdCodec) Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, "", ErrEmptyImage
	}
	return img, format, nil
}

// DecodeFile reads and decodes the file at path, returning the raw bytes as well.
func (c *StdCodec) DecodeFile(path string) (image.Image, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	img, _, err := c.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return img, data, nil
}

func (c *StdCodec) EncodeJPEG(img image.Image) ([]byte, error) {
	quality := c.JPEGQuality
	if quality <= 0 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *StdCodec) EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Fit scales img down to fit within maxW×maxH keeping the aspect ratio.
// A non-positive bound is derived from the other one. Images already inside the box are returned as is.
func (c *StdCodec) Fit(img image.Image, maxW, maxH int) image.Image {
	return resizeToFit(img, maxW, maxH)
}

func resizeToFit(src image.Image, maxW, maxH int) image.Image {
	bw := src.Bounds().Dx()
	bh := src.Bounds().Dy()
	if bw == 0 || bh == 0 || (maxW <= 0 && maxH <= 0) {
		return src
	}
	if maxW <= 0 {
		maxW = int(math.Round(float64(bw) * float64(maxH) / float64(bh)))
	}
	if maxH <= 0 {
		maxH = int(math.Round(float64(bh) * float64(maxW) / float64(bw)))
	}

	scale := math.Min(float64(maxW)/float64(bw), float64(maxH)/float64(bh))
	if scale >= 1.0 {
		return src
	}
	w := int(math.Max(1, math.Round(float64(bw)*scale)))
	h := int(math.Max(1, math.Round(float64(bh)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// Grayscale converts img to an 8-bit gray image anchored at the origin.
func Grayscale(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok && gray.Bounds().Min == (image.Point{}) {
		return gray
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// Crop copies the rectangle r of img into a new RGBA image.
func Crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}
