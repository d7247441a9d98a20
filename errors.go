package grabcut

import "github.com/pkg/errors"

var (
	// ErrUnreadableInput is returned when an image or trimap cannot be decoded.
	ErrUnreadableInput = errors.New("grabcut: unreadable input")
	// ErrDimensionMismatch is returned when image, trimap and mask sizes differ.
	ErrDimensionMismatch = errors.New("grabcut: dimension mismatch")
	// ErrInvalidLabel is returned for a trimap or mask value outside its label set.
	ErrInvalidLabel = errors.New("grabcut: invalid label value")
	// ErrDegenerateLikelihood marks a zero or non-finite data-term likelihood.
	// It is recovered by clamping and only reported through statistics.
	ErrDegenerateLikelihood = errors.New("grabcut: degenerate likelihood")
	// ErrNotSeeded is returned by Step and Run before Seed.
	ErrNotSeeded = errors.New("grabcut: segmenter not seeded")
)
