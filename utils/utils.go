package utils

import (
	"image"
	"image/color"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"

	"github.com/setanarut/grabcut"
	"github.com/setanarut/grabcut/gmm"
)

// ReadImage decodes the image at path. EXIF orientation is applied.
func ReadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(grabcut.ErrUnreadableInput, "%s: %v", path, err)
	}
	return img, nil
}

// ReadTrimap decodes a black/white trimap image.
func ReadTrimap(path string) (*grabcut.Trimap, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(grabcut.ErrUnreadableInput, "%s: %v", path, err)
	}
	t, err := grabcut.TrimapFromImage(img)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return t, nil
}

// SaveImage encodes img in the format implied by the file extension.
func SaveImage(img image.Image, filename string) error {
	return imaging.Save(img, filename)
}

// SaveMask writes the mask as a white-on-black image.
func SaveMask(m *grabcut.Mask, filename string) error {
	return SaveImage(m.Gray(), filename)
}

// ParseColor accepts "#rrggbb", "rrggbb" or "transparent".
func ParseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "transparent") {
		return color.Transparent, nil
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid colour %q", s)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

func luminance(c colorful.Color) float64 {
	r, g, b := c.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// SortPaletteByBrightness orders colors from darkest to brightest.
func SortPaletteByBrightness(palette []colorful.Color) {
	slices.SortFunc(palette, func(a, b colorful.Color) int {
		return compareFloat(luminance(a), luminance(b))
	})
}

func compareFloat(a, b float64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

type weightedColor struct {
	Col    colorful.Color
	Weight float64
}

// ModelPalette returns the component means of m as colours with their
// mixture weights, darkest first. Means are read as 8-bit RGB.
func ModelPalette(m *gmm.MixtureModel) ([]colorful.Color, []float64) {
	items := make([]weightedColor, 0, m.K())
	weights := m.Weights()
	for k, mean := range m.Means() {
		var c colorful.Color
		switch len(mean) {
		case 1, 2:
			c = colorful.Color{R: mean[0] / 255, G: mean[0] / 255, B: mean[0] / 255}
		default:
			c = colorful.Color{R: mean[0] / 255, G: mean[1] / 255, B: mean[2] / 255}
		}
		items = append(items, weightedColor{Col: c.Clamped(), Weight: weights[k]})
	}
	slices.SortFunc(items, func(a, b weightedColor) int {
		return compareFloat(luminance(a.Col), luminance(b.Col))
	})
	palette := make([]colorful.Color, len(items))
	out := make([]float64, len(items))
	for i, it := range items {
		palette[i] = it.Col
		out[i] = it.Weight
	}
	return palette, out
}

// ModelSwatch draws one row per model. Each component mean gets a tile whose
// width is proportional to its weight.
func ModelSwatch(models []*gmm.MixtureModel, tileSize int) (*image.RGBA, error) {
	if len(models) == 0 {
		return nil, errors.New("no models")
	}
	if tileSize <= 0 {
		tileSize = 64
	}
	maxK := 0
	for _, m := range models {
		if m == nil {
			return nil, errors.New("nil model")
		}
		maxK = max(maxK, m.K())
	}

	w := tileSize * maxK
	img := image.NewRGBA(image.Rect(0, 0, w, tileSize*len(models)))
	for row, m := range models {
		palette, weights := ModelPalette(m)
		x0 := 0
		acc := 0.0
		for i, c := range palette {
			acc += weights[i]
			x1 := int(acc*float64(w) + 0.5)
			if i == len(palette)-1 {
				x1 = w
			}
			r, g, b := c.RGB255()
			for y := row * tileSize; y < (row+1)*tileSize; y++ {
				for x := x0; x < x1; x++ {
					img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
				}
			}
			x0 = max(x0, x1)
		}
	}
	return img, nil
}

// SaveModelPalette writes ModelSwatch(models, tileSize) to filename.
func SaveModelPalette(models []*gmm.MixtureModel, tileSize int, filename string) error {
	img, err := ModelSwatch(models, tileSize)
	if err != nil {
		return err
	}
	return SaveImage(img, filename)
}
