package grabcut

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// TrimapLabel is the user-provided constraint of a pixel.
type TrimapLabel uint8

const (
	// HardBackground pixels are background in every cut.
	HardBackground TrimapLabel = iota
	// Unknown pixels are free; they seed the foreground model.
	Unknown
)

func (l TrimapLabel) String() string {
	switch l {
	case HardBackground:
		return "hard-background"
	case Unknown:
		return "unknown"
	}
	return "invalid"
}

// Trimap is a W×H grid of trimap labels.
type Trimap struct {
	W, H   int
	Labels []TrimapLabel
}

// NewTrimap returns a trimap with every pixel Unknown.
func NewTrimap(w, h int) *Trimap {
	t := &Trimap{W: w, H: h, Labels: make([]TrimapLabel, w*h)}
	for i := range t.Labels {
		t.Labels[i] = Unknown
	}
	return t
}

// RectTrimap marks rect Unknown and everything outside it HardBackground,
// the usual rectangle selection.
func RectTrimap(w, h int, rect image.Rectangle) *Trimap {
	t := &Trimap{W: w, H: h, Labels: make([]TrimapLabel, w*h)}
	rect = rect.Intersect(image.Rect(0, 0, w, h))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			t.Labels[labelOffset(w, x, y)] = Unknown
		}
	}
	return t
}

// TrimapFromImage decodes a grey trimap: black is HardBackground and white
// is Unknown. Any other value fails with ErrInvalidLabel.
func TrimapFromImage(src image.Image) (*Trimap, error) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	t := &Trimap{W: w, H: h, Labels: make([]TrimapLabel, w*h)}
	for y := range h {
		for x := range w {
			g := color.GrayModel.Convert(src.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			switch g.Y {
			case 0:
				t.Labels[labelOffset(w, x, y)] = HardBackground
			case 255:
				t.Labels[labelOffset(w, x, y)] = Unknown
			default:
				return nil, errors.Wrapf(ErrInvalidLabel, "trimap value %d at (%d, %d)", g.Y, x, y)
			}
		}
	}
	return t, nil
}

// Validate checks the size against w×h and every label.
func (t *Trimap) Validate(w, h int) error {
	if t.W != w || t.H != h || len(t.Labels) != w*h {
		return errors.Wrapf(ErrDimensionMismatch, "trimap is %dx%d, image is %dx%d", t.W, t.H, w, h)
	}
	for i, l := range t.Labels {
		if l != HardBackground && l != Unknown {
			return errors.Wrapf(ErrInvalidLabel, "trimap label %d at (%d, %d)", l, i%w, i/w)
		}
	}
	return nil
}

// Gray renders the trimap in the format TrimapFromImage reads.
func (t *Trimap) Gray() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, t.W, t.H))
	for i, l := range t.Labels {
		if l == Unknown {
			out.Pix[i] = 255
		}
	}
	return out
}

// Label is the binary classification of a pixel.
type Label uint8

const (
	Background Label = iota
	Foreground
)

func (l Label) String() string {
	switch l {
	case Background:
		return "background"
	case Foreground:
		return "foreground"
	}
	return "invalid"
}

// Mask is the current W×H segmentation.
type Mask struct {
	W, H   int
	Labels []Label
}

// NewMask returns an all-background mask.
func NewMask(w, h int) *Mask {
	return &Mask{W: w, H: h, Labels: make([]Label, w*h)}
}

// SeedMask treats Unknown as Foreground and HardBackground as Background.
func SeedMask(t *Trimap) *Mask {
	m := NewMask(t.W, t.H)
	for i, l := range t.Labels {
		if l == Unknown {
			m.Labels[i] = Foreground
		}
	}
	return m
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	return &Mask{W: m.W, H: m.H, Labels: append([]Label(nil), m.Labels...)}
}

// Count returns how many pixels carry label l.
func (m *Mask) Count(l Label) int {
	n := 0
	for _, v := range m.Labels {
		if v == l {
			n++
		}
	}
	return n
}

// Changed counts the pixels whose label differs from other. Masks of
// different size differ everywhere.
func (m *Mask) Changed(other *Mask) int {
	if other == nil || len(other.Labels) != len(m.Labels) {
		return len(m.Labels)
	}
	n := 0
	for i, v := range m.Labels {
		if other.Labels[i] != v {
			n++
		}
	}
	return n
}

// Equal reports whether both masks have the same size and labels.
func (m *Mask) Equal(other *Mask) bool {
	return other != nil && m.W == other.W && m.H == other.H && m.Changed(other) == 0
}

// Validate checks the size against w×h and every label.
func (m *Mask) Validate(w, h int) error {
	if m.W != w || m.H != h || len(m.Labels) != w*h {
		return errors.Wrapf(ErrDimensionMismatch, "mask is %dx%d, image is %dx%d", m.W, m.H, w, h)
	}
	for i, l := range m.Labels {
		if l != Background && l != Foreground {
			return errors.Wrapf(ErrInvalidLabel, "mask label %d at (%d, %d)", l, i%w, i/w)
		}
	}
	return nil
}

// Gray renders foreground white on black.
func (m *Mask) Gray() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, m.W, m.H))
	for i, l := range m.Labels {
		if l == Foreground {
			out.Pix[i] = 255
		}
	}
	return out
}
