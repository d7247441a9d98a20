package gmm

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// MixtureModel is an ordered set of K weighted Gaussian components whose
// weights sum to 1.
type MixtureModel struct {
	Components []*Gaussian
}

// NewMixtureModel creates k zero-mean identity-covariance components of
// dimension d with equal weights.
func NewMixtureModel(k, d int) (*MixtureModel, error) {
	if k < 1 || d < 1 {
		return nil, errors.Errorf("gmm: need k >= 1 and d >= 1, got k=%d d=%d", k, d)
	}
	m := &MixtureModel{Components: make([]*Gaussian, k)}
	for i := range k {
		m.Components[i] = NewGaussian(d)
		m.Components[i].Weight = 1 / float64(k)
	}
	return m, nil
}

// K is the number of components.
func (m *MixtureModel) K() int {
	return len(m.Components)
}

// Dim is the feature dimensionality.
func (m *MixtureModel) Dim() int {
	return m.Components[0].Dim()
}

// Evaluate returns the weighted likelihood sum_k w_k * p_k(x). Components
// with a singular covariance contribute nothing.
func (m *MixtureModel) Evaluate(x []float64) float64 {
	sum := 0.0
	for _, c := range m.Components {
		if c.Weight <= 0 {
			continue
		}
		p, err := c.Density(x)
		if err != nil {
			continue
		}
		sum += c.Weight * p
	}
	return sum
}

// LogEvaluate is log(Evaluate(x)) computed with log-sum-exp so that far
// outliers do not underflow to -Inf. It returns -Inf when no component can
// be evaluated.
func (m *MixtureModel) LogEvaluate(x []float64) float64 {
	buf := make([]float64, len(m.Components))
	return m.logTerms(x, buf)
}

// logTerms fills buf with log(w_k) + log p_k(x) and returns their
// log-sum-exp.
func (m *MixtureModel) logTerms(x []float64, buf []float64) float64 {
	best := math.Inf(-1)
	for k, c := range m.Components {
		buf[k] = math.Inf(-1)
		if c.Weight <= 0 {
			continue
		}
		ld, err := c.LogDensity(x)
		if err != nil {
			continue
		}
		buf[k] = math.Log(c.Weight) + ld
		if buf[k] > best {
			best = buf[k]
		}
	}
	if math.IsInf(best, -1) {
		return best
	}
	sum := 0.0
	for _, v := range buf {
		sum += math.Exp(v - best)
	}
	return best + math.Log(sum)
}

// Weights returns a copy of the mixture weights.
func (m *MixtureModel) Weights() []float64 {
	out := make([]float64, len(m.Components))
	for k, c := range m.Components {
		out[k] = c.Weight
	}
	return out
}

// Means returns copies of the component means.
func (m *MixtureModel) Means() [][]float64 {
	out := make([][]float64, len(m.Components))
	for k, c := range m.Components {
		out[k] = append([]float64(nil), c.Mean...)
	}
	return out
}

// Clone deep-copies the model.
func (m *MixtureModel) Clone() *MixtureModel {
	c := &MixtureModel{Components: make([]*Gaussian, len(m.Components))}
	for k, g := range m.Components {
		c.Components[k] = g.clone()
	}
	return c
}

// UpdateStats counts the components whose parameters were kept during an
// update.
type UpdateStats struct {
	Skipped  int // effective sample count below the threshold
	Singular int // refit produced a non positive definite covariance
}

// Update refits every component from its responsibility column
// (responsibilities[k][i] belongs to sample i) and renormalizes the weights
// from the responsibility mass.
func (m *MixtureModel) Update(samples [][]float64, responsibilities [][]float64, minWeight, regularization float64) UpdateStats {
	var st UpdateStats
	mass := make([]float64, len(m.Components))
	for k, c := range m.Components {
		mass[k] = floats.Sum(responsibilities[k])
		switch err := c.Fit(samples, responsibilities[k], minWeight, regularization); {
		case errors.Is(err, ErrInsufficientSamples):
			st.Skipped++
		case errors.Is(err, ErrSingularCovariance):
			st.Singular++
		}
	}
	normalizeWeights(mass)
	for k, c := range m.Components {
		c.Weight = mass[k]
	}
	return st
}

// normalizeWeights projects vals onto the probability simplex by clamping
// negatives and rescaling. A zero or non-finite total yields uniform weights.
func normalizeWeights(vals []float64) {
	sum := 0.0
	for i := range vals {
		if !(vals[i] > 0) || math.IsInf(vals[i], 1) {
			vals[i] = 0
		}
		sum += vals[i]
	}
	if sum <= 1e-12 {
		u := 1.0 / float64(len(vals))
		for i := range vals {
			vals[i] = u
		}
		return
	}
	inv := 1.0 / sum
	for i := range vals {
		vals[i] *= inv
	}
}
