// Package grabcut segments an image into foreground and background by
// alternating Gaussian mixture colour models with a minimum cut over the
// pixel grid.
package grabcut

import (
	"image"

	"github.com/pkg/errors"
)

// Image is a dense W×H grid of D-dimensional feature vectors, stored
// interleaved in row-major order.
type Image struct {
	W, H, D int
	Pix     []float64 // len = W*H*D
}

// NewImage allocates a zero image.
func NewImage(w, h, d int) (*Image, error) {
	if w < 1 || h < 1 || d < 1 {
		return nil, errors.Wrapf(ErrDimensionMismatch, "image size %dx%dx%d", w, h, d)
	}
	return &Image{W: w, H: h, D: d, Pix: make([]float64, w*h*d)}, nil
}

// NewImageFromRGB converts src to 8-bit RGB features in [0,255].
func NewImageFromRGB(src image.Image) (*Image, error) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	img, err := NewImage(w, h, 3)
	if err != nil {
		return nil, err
	}
	for y := range h {
		for x := range w {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			off := pixOffset(w, x, y)
			img.Pix[off] = float64(r >> 8)
			img.Pix[off+1] = float64(g >> 8)
			img.Pix[off+2] = float64(b >> 8)
		}
	}
	return img, nil
}

// Len is the number of pixels.
func (img *Image) Len() int {
	return img.W * img.H
}

// Feature returns the feature vector of pixel i (row-major index). The slice
// aliases Pix.
func (img *Image) Feature(i int) []float64 {
	return img.Pix[i*img.D : (i+1)*img.D]
}

// At returns the feature vector at (x, y).
func (img *Image) At(x, y int) []float64 {
	return img.Feature(labelOffset(img.W, x, y))
}

// Set copies f into the feature vector at (x, y).
func (img *Image) Set(x, y int, f ...float64) {
	copy(img.At(x, y), f)
}

func pixOffset(w, x, y int) int {
	return (y*w + x) * 3
}

func labelOffset(w, x, y int) int {
	return y*w + x
}

func squaredDistance(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
