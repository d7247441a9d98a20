package grabcut

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestNewImage(t *testing.T) {
	img, err := NewImage(3, 2, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Len(), test.ShouldEqual, 6)
	test.That(t, img.Pix, test.ShouldHaveLength, 24)

	img.Set(2, 1, 1, 2, 3, 4)
	test.That(t, img.Feature(5), test.ShouldResemble, []float64{1, 2, 3, 4})
	test.That(t, img.At(2, 1), test.ShouldResemble, []float64{1, 2, 3, 4})

	for _, dims := range [][3]int{{0, 1, 1}, {1, 0, 1}, {1, 1, 0}} {
		_, err := NewImage(dims[0], dims[1], dims[2])
		test.That(t, errors.Is(err, ErrDimensionMismatch), test.ShouldBeTrue)
	}
}

func TestNewImageFromRGB(t *testing.T) {
	src := image.NewNRGBA(image.Rect(-1, 2, 1, 3))
	src.SetNRGBA(-1, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(0, 2, color.NRGBA{R: 255, G: 128, B: 0, A: 255})
	img, err := NewImageFromRGB(src)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.W, test.ShouldEqual, 2)
	test.That(t, img.H, test.ShouldEqual, 1)
	test.That(t, img.D, test.ShouldEqual, 3)
	test.That(t, img.Pix, test.ShouldResemble, []float64{10, 20, 30, 255, 128, 0})

	_, err = NewImageFromRGB(image.NewRGBA(image.Rectangle{}))
	test.That(t, errors.Is(err, ErrDimensionMismatch), test.ShouldBeTrue)
}
