// Package gmm implements Gaussian mixture colour models fitted by
// expectation-maximization.
package gmm

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrSingularCovariance is returned when a covariance matrix has no
	// Cholesky factorization, so the density cannot be evaluated.
	ErrSingularCovariance = errors.New("gmm: covariance is not positive definite")
	// ErrInsufficientSamples is returned when the effective sample count
	// (sum of weights) is below the refit threshold.
	ErrInsufficientSamples = errors.New("gmm: insufficient samples")
)

const log2Pi = 1.8378770664093453

// Gaussian is one weighted multivariate normal component.
type Gaussian struct {
	Mean   []float64
	Cov    *mat.SymDense
	Weight float64

	// Dense row-major precision matrix and log-determinant of Cov, kept in
	// sync by refresh so density evaluation does not allocate.
	prec   []float64
	logDet float64
	valid  bool
}

// NewGaussian returns a zero-mean, identity-covariance component of
// dimension d with weight 1.
func NewGaussian(d int) *Gaussian {
	g := &Gaussian{
		Mean:   make([]float64, d),
		Cov:    identity(d),
		Weight: 1,
	}
	g.refresh()
	return g
}

func identity(d int) *mat.SymDense {
	s := mat.NewSymDense(d, nil)
	for i := range d {
		s.SetSym(i, i, 1)
	}
	return s
}

// Dim is the feature dimensionality.
func (g *Gaussian) Dim() int {
	return len(g.Mean)
}

// Valid reports whether the covariance is invertible.
func (g *Gaussian) Valid() bool {
	return g.valid
}

// SetParams replaces mean and covariance. The component is left untouched
// when cov is not positive definite.
func (g *Gaussian) SetParams(mean []float64, cov *mat.SymDense) error {
	if len(mean) != g.Dim() || cov.SymmetricDim() != g.Dim() {
		return errors.Errorf("gmm: parameter dimension mismatch: mean %d, cov %d, component %d",
			len(mean), cov.SymmetricDim(), g.Dim())
	}
	prec, logDet, ok := factorize(cov)
	if !ok {
		return ErrSingularCovariance
	}
	copy(g.Mean, mean)
	g.Cov = cov
	g.prec = prec
	g.logDet = logDet
	g.valid = true
	return nil
}

func (g *Gaussian) refresh() {
	g.prec, g.logDet, g.valid = factorize(g.Cov)
}

func factorize(cov *mat.SymDense) ([]float64, float64, bool) {
	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, 0, false
	}
	d := cov.SymmetricDim()
	inv := mat.NewSymDense(d, nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, 0, false
	}
	prec := make([]float64, d*d)
	for i := range d {
		for j := range d {
			prec[i*d+j] = inv.At(i, j)
		}
	}
	logDet := chol.LogDet()
	if math.IsNaN(logDet) || math.IsInf(logDet, 0) {
		return nil, 0, false
	}
	return prec, logDet, true
}

// LogDensity returns the log of the normal density at x.
func (g *Gaussian) LogDensity(x []float64) (float64, error) {
	if !g.valid {
		return math.Inf(-1), ErrSingularCovariance
	}
	d := len(g.Mean)
	q := 0.0
	for i := range d {
		di := x[i] - g.Mean[i]
		row := g.prec[i*d : i*d+d]
		s := 0.0
		for j := range d {
			s += row[j] * (x[j] - g.Mean[j])
		}
		q += di * s
	}
	return -0.5 * (float64(d)*log2Pi + g.logDet + q), nil
}

// Density returns the normal density at x, or ErrSingularCovariance.
func (g *Gaussian) Density(x []float64) (float64, error) {
	ld, err := g.LogDensity(x)
	if err != nil {
		return 0, err
	}
	return math.Exp(ld), nil
}

// Fit re-estimates mean and covariance from weighted samples: the weighted
// average and the weighted second moment about it, plus regularization on
// the diagonal. Parameters stay unchanged when the weight total is below
// minWeight or the result is not positive definite.
func (g *Gaussian) Fit(samples [][]float64, weights []float64, minWeight, regularization float64) error {
	total := floats.Sum(weights)
	if !(total >= minWeight) || total <= 0 {
		return ErrInsufficientSamples
	}
	d := g.Dim()
	mean := make([]float64, d)
	for i, x := range samples {
		if weights[i] == 0 {
			continue
		}
		floats.AddScaled(mean, weights[i], x)
	}
	floats.Scale(1/total, mean)

	cov := mat.NewSymDense(d, nil)
	diff := make([]float64, d)
	dv := mat.NewVecDense(d, diff)
	for i, x := range samples {
		w := weights[i]
		if w == 0 {
			continue
		}
		floats.SubTo(diff, x, mean)
		cov.SymRankOne(cov, w, dv)
	}
	cov.ScaleSym(1/total, cov)
	for i := range d {
		cov.SetSym(i, i, cov.At(i, i)+regularization)
	}
	return g.SetParams(mean, cov)
}

func (g *Gaussian) clone() *Gaussian {
	c := &Gaussian{
		Mean:   append([]float64(nil), g.Mean...),
		Cov:    mat.NewSymDense(g.Dim(), nil),
		Weight: g.Weight,
	}
	c.Cov.CopySym(g.Cov)
	c.refresh()
	return c
}

func (g *Gaussian) reset(mean []float64, weight float64) {
	copy(g.Mean, mean)
	g.Cov = identity(g.Dim())
	g.Weight = weight
	g.refresh()
}
