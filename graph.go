package grabcut

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/setanarut/grabcut/internal/workers"
	"github.com/setanarut/grabcut/maxflow"
)

const (
	// minSigma2 keeps the smoothness term finite on flat images.
	minSigma2              = 1e-9
	defaultLikelihoodFloor = 1e-300
)

// Likelihood evaluates a colour model at a feature vector.
// *gmm.MixtureModel implements it.
type Likelihood interface {
	Evaluate(x []float64) float64
}

// GraphOptions are the energy parameters of BuildGraph.
type GraphOptions struct {
	// Weight of the data term relative to smoothness.
	Lambda float64
	// Likelihoods at or below this, or non-finite, are clamped to it.
	LikelihoodFloor float64
	Workers         int
	Logger          golog.Logger
}

// PixelGraph is the flow network of one segmentation iteration. Node i is
// the pixel with row-major index i; the source stands for foreground and
// the sink for background.
type PixelGraph struct {
	W, H    int
	Network *maxflow.Network
	// Smoothness scale actually used.
	Sigma2 float64
	// Sink capacity of hard background pixels.
	HardCapacity float64
	// Number of likelihood evaluations that had to be clamped.
	Degenerate int
	// t-link capacities as added to the network.
	Source, Sink []float64

	trimap *Trimap
	solved bool
}

// NoiseVariance returns the mean squared colour difference over every
// 4-adjacent pixel pair, each pair counted once. It is 0 for images with no
// pairs or a single colour.
func NoiseVariance(img *Image, nworkers int) float64 {
	pairs := img.W*(img.H-1) + img.H*(img.W-1)
	if pairs <= 0 {
		return 0
	}
	ranges := workers.Split(img.H, nworkers)
	partial := make([]float64, len(ranges))
	_ = workers.Each(ranges, func(c int, r workers.Range) error {
		sum := 0.0
		for y := r.Lo; y < r.Hi; y++ {
			for x := range img.W {
				p := img.At(x, y)
				if x+1 < img.W {
					sum += squaredDistance(p, img.At(x+1, y))
				}
				if y+1 < img.H {
					sum += squaredDistance(p, img.At(x, y+1))
				}
			}
		}
		partial[c] = sum
		return nil
	})
	total := 0.0
	for _, v := range partial {
		total += v
	}
	return total / float64(pairs)
}

// BuildGraph constructs the network for one iteration from the image, the
// current mask, the two fitted colour models and the hard constraints.
func BuildGraph(img *Image, mask *Mask, fg, bg Likelihood, trimap *Trimap, opt GraphOptions) (*PixelGraph, error) {
	if img == nil || mask == nil || trimap == nil || fg == nil || bg == nil {
		return nil, errors.New("grabcut: nil graph input")
	}
	if err := trimap.Validate(img.W, img.H); err != nil {
		return nil, err
	}
	if err := mask.Validate(img.W, img.H); err != nil {
		return nil, err
	}
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if !(opt.LikelihoodFloor > 0) {
		opt.LikelihoodFloor = defaultLikelihoodFloor
	}

	w, h := img.W, img.H
	n := w * h
	g := &PixelGraph{
		W:      w,
		H:      h,
		Source: make([]float64, n),
		Sink:   make([]float64, n),
		trimap: trimap,
	}

	g.Sigma2 = NoiseVariance(img, opt.Workers)
	if !(g.Sigma2 > minSigma2) || math.IsInf(g.Sigma2, 0) {
		g.Sigma2 = minSigma2
	}
	beta := 1 / (2 * g.Sigma2)

	// right[i] links i to i+1, down[i] links i to i+W.
	right := make([]float64, n)
	down := make([]float64, n)
	rows := workers.Split(h, opt.Workers)
	_ = workers.Each(rows, func(_ int, r workers.Range) error {
		for y := r.Lo; y < r.Hi; y++ {
			for x := range w {
				i := labelOffset(w, x, y)
				p := img.Feature(i)
				if x+1 < w {
					right[i] = math.Exp(-beta * squaredDistance(p, img.Feature(i+1)))
				}
				if y+1 < h {
					down[i] = math.Exp(-beta * squaredDistance(p, img.Feature(i+w)))
				}
			}
		}
		return nil
	})

	maxIncident := 0.0
	for i := range n {
		s := right[i] + down[i]
		if i%w > 0 {
			s += right[i-1]
		}
		if i >= w {
			s += down[i-w]
		}
		maxIncident = max(maxIncident, s)
	}
	g.HardCapacity = 1 + maxIncident

	pixels := workers.Split(n, opt.Workers)
	degenerate := make([]int, len(pixels))
	_ = workers.Each(pixels, func(c int, r workers.Range) error {
		for i := r.Lo; i < r.Hi; i++ {
			if trimap.Labels[i] == HardBackground {
				g.Source[i] = 0
				g.Sink[i] = g.HardCapacity
				continue
			}
			x := img.Feature(i)
			src, bad := dataCost(bg.Evaluate(x), opt.LikelihoodFloor, opt.Lambda)
			if bad {
				degenerate[c]++
			}
			sink, bad := dataCost(fg.Evaluate(x), opt.LikelihoodFloor, opt.Lambda)
			if bad {
				degenerate[c]++
			}
			if lo := min(src, sink); lo < 0 {
				src -= lo
				sink -= lo
			}
			g.Source[i] = src
			g.Sink[i] = sink
		}
		return nil
	})
	for _, d := range degenerate {
		g.Degenerate += d
	}
	if g.Degenerate > 0 {
		logger.Debugw("clamped likelihoods",
			"count", g.Degenerate, "floor", opt.LikelihoodFloor,
			"error", ErrDegenerateLikelihood)
	}

	edges := (w-1)*h + w*(h-1)
	g.Network = maxflow.New(n, 2*max(edges, 0))
	for i := range n {
		if i%w+1 < w {
			g.Network.AddEdge(i, i+1, right[i], right[i])
		}
		if i+w < n {
			g.Network.AddEdge(i, i+w, down[i], down[i])
		}
		g.Network.AddTWeights(i, g.Source[i], g.Sink[i])
	}
	return g, nil
}

// dataCost is -lambda*log(lik), clamping lik to floor when it is at or
// below the floor or not finite. The flag reports clamping.
func dataCost(lik, floor, lambda float64) (float64, bool) {
	if !(lik > floor) || math.IsInf(lik, 0) {
		return -lambda * math.Log(floor), true
	}
	return -lambda * math.Log(lik), false
}

// Solve runs the max-flow and returns the labelling of the minimum cut,
// source side as Foreground, together with the flow value. Hard background
// pixels are Background regardless of the cut.
func (g *PixelGraph) Solve() (*Mask, float64) {
	var flow float64
	if g.solved {
		flow = g.Network.Flow()
	} else {
		flow = g.Network.MaxFlow()
		g.solved = true
	}
	m := NewMask(g.W, g.H)
	for i := range m.Labels {
		if g.trimap.Labels[i] == HardBackground {
			continue
		}
		if g.Network.Segment(i) == maxflow.SourceSide {
			m.Labels[i] = Foreground
		}
	}
	return m, flow
}
