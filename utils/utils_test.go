package utils

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/setanarut/grabcut"
	"github.com/setanarut/grabcut/gmm"
)

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff8000")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c, test.ShouldResemble, color.RGBA{R: 255, G: 128, B: 0, A: 255})

	c, err = ParseColor(" 00ff00 ")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c, test.ShouldResemble, color.RGBA{G: 255, A: 255})

	c, err = ParseColor("Transparent")
	test.That(t, err, test.ShouldBeNil)
	_, _, _, a := c.RGBA()
	test.That(t, a, test.ShouldEqual, uint32(0))

	_, err = ParseColor("#zzzzzz")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSaveReadImage(t *testing.T) {
	dir := t.TempDir()
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(1, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	path := filepath.Join(dir, "in.png")
	test.That(t, SaveImage(src, path), test.ShouldBeNil)

	img, err := ReadImage(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 3, 2))
	r, g, b, _ := img.At(1, 1).RGBA()
	test.That(t, []uint32{r >> 8, g >> 8, b >> 8}, test.ShouldResemble, []uint32{200, 100, 50})
}

func TestReadImageErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadImage(filepath.Join(dir, "missing.png"))
	test.That(t, errors.Is(err, grabcut.ErrUnreadableInput), test.ShouldBeTrue)

	junk := filepath.Join(dir, "junk.png")
	test.That(t, os.WriteFile(junk, []byte("not an image"), 0o644), test.ShouldBeNil)
	_, err = ReadImage(junk)
	test.That(t, errors.Is(err, grabcut.ErrUnreadableInput), test.ShouldBeTrue)
	_, err = ReadTrimap(junk)
	test.That(t, errors.Is(err, grabcut.ErrUnreadableInput), test.ShouldBeTrue)
}

func TestMaskAndTrimapRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tri := grabcut.RectTrimap(5, 4, image.Rect(1, 1, 4, 3))
	path := filepath.Join(dir, "trimap.png")
	test.That(t, SaveImage(tri.Gray(), path), test.ShouldBeNil)
	got, err := ReadTrimap(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, tri)

	// A written mask is itself a valid trimap.
	m := grabcut.SeedMask(tri)
	maskPath := filepath.Join(dir, "mask.png")
	test.That(t, SaveMask(m, maskPath), test.ShouldBeNil)
	got, err = ReadTrimap(maskPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Labels, test.ShouldResemble, tri.Labels)
}

func TestReadTrimapInvalidValue(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2, 2))
	src.SetGray(0, 1, color.Gray{Y: 77})
	path := filepath.Join(t.TempDir(), "trimap.png")
	test.That(t, SaveImage(src, path), test.ShouldBeNil)
	_, err := ReadTrimap(path)
	test.That(t, errors.Is(err, grabcut.ErrInvalidLabel), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "trimap.png")
}

func TestSortPaletteByBrightness(t *testing.T) {
	p := []colorful.Color{{R: 1, G: 1, B: 1}, {R: 0, G: 0, B: 0}, {R: 0, G: 1, B: 0}, {R: 0, G: 0, B: 1}}
	SortPaletteByBrightness(p)
	test.That(t, p, test.ShouldResemble, []colorful.Color{{R: 0, G: 0, B: 0}, {R: 0, G: 0, B: 1}, {R: 0, G: 1, B: 0}, {R: 1, G: 1, B: 1}})
}

func testModel(t *testing.T, means [][]float64, weights []float64) *gmm.MixtureModel {
	t.Helper()
	m, err := gmm.NewMixtureModel(len(means), len(means[0]))
	test.That(t, err, test.ShouldBeNil)
	for k, c := range m.Components {
		copy(c.Mean, means[k])
		c.Weight = weights[k]
	}
	return m
}

func TestModelPalette(t *testing.T) {
	m := testModel(t, [][]float64{{255, 255, 255}, {0, 0, 0}, {300, -10, 0}}, []float64{0.5, 0.3, 0.2})
	palette, weights := ModelPalette(m)
	test.That(t, palette, test.ShouldHaveLength, 3)
	test.That(t, palette[0], test.ShouldResemble, colorful.Color{})
	test.That(t, weights, test.ShouldResemble, []float64{0.3, 0.2, 0.5})
	// Out-of-range means are clamped.
	test.That(t, palette[1], test.ShouldResemble, colorful.Color{R: 1})
}

func TestModelSwatch(t *testing.T) {
	_, err := ModelSwatch(nil, 8)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ModelSwatch([]*gmm.MixtureModel{nil}, 8)
	test.That(t, err, test.ShouldNotBeNil)

	fg := testModel(t, [][]float64{{0, 0, 0}, {255, 255, 255}}, []float64{0.25, 0.75})
	bg := testModel(t, [][]float64{{0, 0, 255}}, []float64{1})
	img, err := ModelSwatch([]*gmm.MixtureModel{fg, bg}, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 8, 8))

	black := color.RGBA{A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	test.That(t, img.RGBAAt(0, 0), test.ShouldResemble, black)
	test.That(t, img.RGBAAt(1, 3), test.ShouldResemble, black)
	test.That(t, img.RGBAAt(2, 0), test.ShouldResemble, white)
	test.That(t, img.RGBAAt(7, 3), test.ShouldResemble, white)
	test.That(t, img.RGBAAt(0, 4), test.ShouldResemble, blue)
	test.That(t, img.RGBAAt(7, 7), test.ShouldResemble, blue)

	path := filepath.Join(t.TempDir(), "models.png")
	test.That(t, SaveModelPalette([]*gmm.MixtureModel{fg, bg}, 4, path), test.ShouldBeNil)
	_, err = os.Stat(path)
	test.That(t, err, test.ShouldBeNil)
}
