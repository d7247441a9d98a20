package gmm

import (
	"image"
	"image/color"
	"math"
	"slices"
	"strings"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"github.com/pkg/errors"
)

// InitMethod selects how component means are seeded before EM.
type InitMethod int

const (
	// InitQuasiRandom places means on a Halton sequence inside the sample
	// bounding box. Deterministic.
	InitQuasiRandom InitMethod = iota
	// InitKMeans uses k-means cluster centres, weighted by cluster size.
	InitKMeans
	// InitDominant uses the dominant colours of the samples. Requires 3
	// channels in the 8-bit range.
	InitDominant
)

func (m InitMethod) String() string {
	switch m {
	case InitKMeans:
		return "kmeans"
	case InitDominant:
		return "dominant"
	default:
		return "quasirandom"
	}
}

// ParseInitMethod is the inverse of String.
func ParseInitMethod(s string) (InitMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "quasirandom", "halton":
		return InitQuasiRandom, nil
	case "kmeans":
		return InitKMeans, nil
	case "dominant", "dominantcolor":
		return InitDominant, nil
	}
	return InitQuasiRandom, errors.Errorf("gmm: unknown init method %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m InitMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *InitMethod) UnmarshalText(b []byte) error {
	v, err := ParseInitMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Subsample bound for k-means seeding.
const maxKMeansSamples = 12000

// InitializeComponents resets every component to identity covariance and
// seeds the means with the requested method. It returns the method actually
// used: k-means and dominant colour seeding fall back to quasi-random when
// the samples cannot support them.
func (m *MixtureModel) InitializeComponents(samples [][]float64, method InitMethod) InitMethod {
	switch method {
	case InitKMeans:
		if m.initKMeans(samples) {
			return InitKMeans
		}
	case InitDominant:
		if m.initDominant(samples) {
			return InitDominant
		}
	}
	m.initQuasiRandom(samples)
	return InitQuasiRandom
}

func (m *MixtureModel) initQuasiRandom(samples [][]float64) {
	d := m.Dim()
	lo, hi := sampleRange(samples, d)
	k := m.K()
	mean := make([]float64, d)
	for i, c := range m.Components {
		for j := range d {
			mean[j] = lo[j] + halton(i+1, primeBase(j))*(hi[j]-lo[j])
		}
		c.reset(mean, 1/float64(k))
	}
}

// sampleRange is the per-dimension bounding box; [0,1] without samples.
func sampleRange(samples [][]float64, d int) ([]float64, []float64) {
	lo := make([]float64, d)
	hi := make([]float64, d)
	if len(samples) == 0 {
		for j := range d {
			hi[j] = 1
		}
		return lo, hi
	}
	copy(lo, samples[0])
	copy(hi, samples[0])
	for _, x := range samples[1:] {
		for j := range d {
			lo[j] = min(lo[j], x[j])
			hi[j] = max(hi[j], x[j])
		}
	}
	return lo, hi
}

// halton is the radical inverse of index in the given base.
func halton(index, base int) float64 {
	f, r := 1.0, 0.0
	for i := index; i > 0; i /= base {
		f /= float64(base)
		r += f * float64(i%base)
	}
	return r
}

// primeBase returns the (j+1)-th prime.
func primeBase(j int) int {
	count := -1
	for n := 2; ; n++ {
		prime := true
		for p := 2; p*p <= n; p++ {
			if n%p == 0 {
				prime = false
				break
			}
		}
		if prime {
			count++
			if count == j {
				return n
			}
		}
	}
}

func (m *MixtureModel) initKMeans(samples [][]float64) bool {
	k := m.K()
	d := m.Dim()
	if len(samples) < k {
		return false
	}

	// Subsample to keep kmeans tractable on large images.
	step := 1
	if len(samples) > maxKMeansSamples {
		step = len(samples)/maxKMeansSamples + 1
	}
	dataset := make(clusters.Observations, 0, len(samples)/step+1)
	for i := 0; i < len(samples); i += step {
		dataset = append(dataset, clusters.Coordinates(samples[i]))
	}
	if distinct(dataset, k) < k {
		return false
	}
	cc, err := kmeans.New().Partition(dataset, k)
	if err != nil || len(cc) != k {
		return false
	}

	// Heaviest cluster first.
	slices.SortFunc(cc, func(a, b clusters.Cluster) int {
		return len(b.Observations) - len(a.Observations)
	})
	mass := make([]float64, k)
	for i, c := range cc {
		if len(c.Center) != d {
			return false
		}
		mass[i] = float64(len(c.Observations))
	}
	normalizeWeights(mass)
	for i, c := range cc {
		m.Components[i].reset(c.Center, mass[i])
	}
	return true
}

// distinct counts distinct observations, stopping at limit.
func distinct(obs clusters.Observations, limit int) int {
	var seen []clusters.Coordinates
	for _, o := range obs {
		c := o.Coordinates()
		if !slices.ContainsFunc(seen, func(s clusters.Coordinates) bool { return slices.Equal(s, c) }) {
			seen = append(seen, c)
			if len(seen) >= limit {
				break
			}
		}
	}
	return len(seen)
}

type weightedColor struct {
	Col    colorful.Color
	Weight float64
}

func (m *MixtureModel) initDominant(samples [][]float64) bool {
	k := m.K()
	if m.Dim() != 3 || len(samples) == 0 {
		return false
	}

	// Lay the samples out on a square canvas, repeating them to fill it.
	side := int(math.Ceil(math.Sqrt(float64(len(samples)))))
	canvas := image.NewRGBA(image.Rect(0, 0, side, side))
	for i := range side * side {
		x := samples[i%len(samples)]
		canvas.SetRGBA(i%side, i/side, color.RGBA{
			R: uint8(max(0, min(255, x[0]))),
			G: uint8(max(0, min(255, x[1]))),
			B: uint8(max(0, min(255, x[2]))),
			A: 255,
		})
	}

	candidates := dominantcolor.FindWeight(canvas, max(24, k*8))
	weighted := make([]weightedColor, 0, len(candidates))
	for _, c := range candidates {
		col, _ := colorful.MakeColor(c.RGBA)
		weighted = append(weighted, weightedColor{Col: col.Clamped(), Weight: max(c.Weight, 1e-6)})
	}
	picked := selectDiverse(weighted, k)
	if len(picked) != k {
		return false
	}

	mass := make([]float64, k)
	for i, p := range picked {
		mass[i] = p.Weight
	}
	normalizeWeights(mass)
	for i, p := range picked {
		m.Components[i].reset([]float64{p.Col.R * 255, p.Col.G * 255, p.Col.B * 255}, mass[i])
	}
	return true
}

// selectDiverse greedily picks up to k candidates, starting from the
// heaviest and then maximizing Lab distance to the picked set scaled by
// candidate weight.
func selectDiverse(cands []weightedColor, k int) []weightedColor {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	k = min(k, len(cands))
	labs := make([][3]float64, len(cands))
	maxW := 0.0
	best := 0
	for i, c := range cands {
		l, a, b := c.Col.Lab()
		labs[i] = [3]float64{l, a, b}
		if c.Weight > maxW {
			maxW = c.Weight
			best = i
		}
	}

	selected := make([]bool, len(cands))
	picked := []int{best}
	selected[best] = true
	for len(picked) < k {
		bestIdx, bestScore := -1, -1.0
		for i := range cands {
			if selected[i] {
				continue
			}
			minD2 := math.MaxFloat64
			for _, s := range picked {
				d0 := labs[i][0] - labs[s][0]
				d1 := labs[i][1] - labs[s][1]
				d2 := labs[i][2] - labs[s][2]
				minD2 = min(minD2, d0*d0+d1*d1+d2*d2)
			}
			score := math.Sqrt(minD2) * (0.55 + 0.45*math.Sqrt(cands[i].Weight/maxW))
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		selected[bestIdx] = true
		picked = append(picked, bestIdx)
	}

	out := make([]weightedColor, len(picked))
	for i, idx := range picked {
		out[i] = cands[idx]
	}
	return out
}
