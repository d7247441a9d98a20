package grabcut

import (
	"image"
	"image/color"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/setanarut/grabcut/gmm"
)

// State is the position of a Segmenter in its life cycle.
type State int

const (
	Uninitialized State = iota
	Seeded
	Iterating
	Converged
	IterationLimitReached
)

func (s State) String() string {
	switch s {
	case Seeded:
		return "seeded"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case IterationLimitReached:
		return "iteration-limit-reached"
	}
	return "uninitialized"
}

// Terminal reports whether Run would stop in this state.
func (s State) Terminal() bool {
	return s == Converged || s == IterationLimitReached
}

// IterationStats describes one Step.
type IterationStats struct {
	Iteration      int
	Foreground     gmm.EMResult
	Background     gmm.EMResult
	ForegroundInit gmm.InitMethod
	BackgroundInit gmm.InitMethod
	Flow           float64
	Sigma2         float64
	Degenerate     int
	Changed        int // pixels that switched label
	Duration       time.Duration
}

// Result is the outcome of Run.
type Result struct {
	Mask       *Mask
	State      State
	Iterations int
	Stats      []IterationStats
}

// Segmenter alternates colour model fitting and minimum cuts over one
// image. It is not safe for concurrent use.
type Segmenter struct {
	opt    Options
	logger golog.Logger

	img    *Image
	trimap *Trimap
	mask   *Mask
	fg, bg *gmm.MixtureModel

	state      State
	iterations int
	stats      []IterationStats
}

// NewSegmenter validates opt and returns an Uninitialized segmenter.
func NewSegmenter(opt Options) (*Segmenter, error) {
	if err := opt.Validate(); err != nil {
		return nil, errors.Wrap(err, "grabcut: invalid options")
	}
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
		opt.Logger = logger
	}
	return &Segmenter{opt: opt, logger: logger}, nil
}

// Seed loads the image and trimap, derives the initial mask and fits fresh
// models to it. Seeding again restarts the run.
func (s *Segmenter) Seed(img *Image, trimap *Trimap) error {
	if img == nil || trimap == nil {
		return errors.New("grabcut: nil image or trimap")
	}
	if len(img.Pix) != img.W*img.H*img.D {
		return errors.Wrapf(ErrDimensionMismatch, "image buffer has %d values, want %d", len(img.Pix), img.W*img.H*img.D)
	}
	if err := trimap.Validate(img.W, img.H); err != nil {
		return err
	}
	s.img = img
	s.trimap = trimap
	s.mask = SeedMask(trimap)
	s.iterations = 0
	s.stats = nil

	var err error
	fgSamples, bgSamples := s.partition()
	if s.fg, _, err = s.newModel(fgSamples); err != nil {
		return err
	}
	if s.bg, _, err = s.newModel(bgSamples); err != nil {
		return err
	}
	s.state = Seeded
	s.logger.Debugw("seeded",
		"width", img.W, "height", img.H,
		"foreground", len(fgSamples), "background", len(bgSamples))
	return nil
}

// partition splits the pixels by the current mask. Samples alias the image.
func (s *Segmenter) partition() (fg, bg [][]float64) {
	nfg := s.mask.Count(Foreground)
	fg = make([][]float64, 0, nfg)
	bg = make([][]float64, 0, len(s.mask.Labels)-nfg)
	for i, l := range s.mask.Labels {
		if l == Foreground {
			fg = append(fg, s.img.Feature(i))
		} else {
			bg = append(bg, s.img.Feature(i))
		}
	}
	return fg, bg
}

func (s *Segmenter) newModel(samples [][]float64) (*gmm.MixtureModel, gmm.InitMethod, error) {
	m, err := gmm.NewMixtureModel(s.opt.Components, s.img.D)
	if err != nil {
		return nil, s.opt.Init, err
	}
	used := m.InitializeComponents(samples, s.opt.Init)
	if used != s.opt.Init {
		s.logger.Debugw("init method fell back", "requested", s.opt.Init, "used", used, "samples", len(samples))
	}
	return m, used, nil
}

// fit builds a fresh model for samples and runs EM on it.
func (s *Segmenter) fit(class string, samples [][]float64) (*gmm.MixtureModel, gmm.InitMethod, gmm.EMResult, error) {
	m, used, err := s.newModel(samples)
	if err != nil {
		return nil, used, gmm.EMResult{}, err
	}
	if len(samples) == 0 {
		s.logger.Warnw("no pixels to fit, keeping initial model", "class", class)
	}
	res, err := gmm.Fit(samples, m, s.opt.emOptions())
	if err != nil {
		return nil, used, res, errors.Wrapf(err, "fitting %s model", class)
	}
	if res.Skipped > 0 || res.Singular > 0 {
		s.logger.Warnw("components kept previous parameters",
			"class", class, "skipped", res.Skipped, "singular", res.Singular,
			"error", gmm.ErrInsufficientSamples)
	}
	return m, used, res, nil
}

// Step runs one iteration: fit both models to the current partition,
// rebuild the graph, cut it and adopt the new mask. Step may be called in a
// terminal state; a converged mask does not change.
func (s *Segmenter) Step() (IterationStats, error) {
	var st IterationStats
	if s.state == Uninitialized {
		return st, ErrNotSeeded
	}
	start := time.Now()
	if !s.state.Terminal() {
		s.state = Iterating
	}

	fgSamples, bgSamples := s.partition()
	fg, fgInit, fgRes, err := s.fit("foreground", fgSamples)
	if err != nil {
		return st, err
	}
	bg, bgInit, bgRes, err := s.fit("background", bgSamples)
	if err != nil {
		return st, err
	}

	g, err := BuildGraph(s.img, s.mask, fg, bg, s.trimap, s.opt.graphOptions())
	if err != nil {
		return st, err
	}
	mask, flow := g.Solve()

	s.iterations++
	st = IterationStats{
		Iteration:      s.iterations,
		Foreground:     fgRes,
		Background:     bgRes,
		ForegroundInit: fgInit,
		BackgroundInit: bgInit,
		Flow:           flow,
		Sigma2:         g.Sigma2,
		Degenerate:     g.Degenerate,
		Changed:        mask.Changed(s.mask),
	}
	s.fg, s.bg = fg, bg
	s.mask = mask

	switch {
	case st.Changed == 0:
		s.state = Converged
	case s.iterations >= s.opt.MaxIterations:
		s.state = IterationLimitReached
	default:
		s.state = Iterating
	}
	st.Duration = time.Since(start)
	s.stats = append(s.stats, st)

	s.logger.Infow("iteration",
		"iteration", st.Iteration, "state", s.state,
		"flow", st.Flow, "changed", st.Changed,
		"foreground", mask.Count(Foreground), "degenerate", st.Degenerate,
		"duration", st.Duration)
	return st, nil
}

// Run steps until the mask stops changing or MaxIterations is reached.
func (s *Segmenter) Run() (*Result, error) {
	if s.state == Uninitialized {
		return nil, ErrNotSeeded
	}
	for !s.state.Terminal() {
		if _, err := s.Step(); err != nil {
			return nil, err
		}
	}
	return &Result{
		Mask:       s.mask.Clone(),
		State:      s.state,
		Iterations: s.iterations,
		Stats:      s.Stats(),
	}, nil
}

// State returns the current state.
func (s *Segmenter) State() State {
	return s.state
}

// Mask returns a copy of the current mask, or nil before Seed.
func (s *Segmenter) Mask() *Mask {
	if s.mask == nil {
		return nil
	}
	return s.mask.Clone()
}

// Models returns copies of the foreground and background models.
func (s *Segmenter) Models() (fg, bg *gmm.MixtureModel) {
	if s.fg == nil || s.bg == nil {
		return nil, nil
	}
	return s.fg.Clone(), s.bg.Clone()
}

// Stats returns the statistics of every Step since Seed.
func (s *Segmenter) Stats() []IterationStats {
	return append([]IterationStats(nil), s.stats...)
}

// CutOut returns the image with every background pixel replaced by bg.
func (s *Segmenter) CutOut(bg color.Color) *image.RGBA {
	if s.img == nil {
		return nil
	}
	w, h := s.img.W, s.img.H
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := color.RGBAModel.Convert(bg).(color.RGBA)
	for y := range h {
		for x := range w {
			if s.mask.Labels[labelOffset(w, x, y)] == Background {
				out.SetRGBA(x, y, fill)
				continue
			}
			out.SetRGBA(x, y, s.pixelRGBA(x, y))
		}
	}
	return out
}

// AlphaCutOut returns the image with background pixels fully transparent.
func (s *Segmenter) AlphaCutOut() *image.NRGBA {
	if s.img == nil {
		return nil
	}
	w, h := s.img.W, s.img.H
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			c := s.pixelRGBA(x, y)
			a := uint8(0)
			if s.mask.Labels[labelOffset(w, x, y)] == Foreground {
				a = 255
			}
			out.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: a})
		}
	}
	return out
}

// pixelRGBA maps features back to 8-bit colour. Images with fewer than three
// channels are shown as grey.
func (s *Segmenter) pixelRGBA(x, y int) color.RGBA {
	f := s.img.At(x, y)
	clamp := func(v float64) uint8 {
		return uint8(max(0, min(255, v)))
	}
	if len(f) < 3 {
		v := clamp(f[0])
		return color.RGBA{v, v, v, 255}
	}
	return color.RGBA{clamp(f[0]), clamp(f[1]), clamp(f[2]), 255}
}

// Segment runs a complete segmentation of src.
func Segment(src image.Image, trimap *Trimap, opt Options) (*Result, error) {
	img, err := NewImageFromRGB(src)
	if err != nil {
		return nil, err
	}
	s, err := NewSegmenter(opt)
	if err != nil {
		return nil, err
	}
	if err := s.Seed(img, trimap); err != nil {
		return nil, err
	}
	return s.Run()
}
