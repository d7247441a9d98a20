package gmm

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/setanarut/grabcut/internal/workers"
)

// EMOptions controls a single EM fit.
type EMOptions struct {
	// Iteration cap.
	MaxIterations int
	// Stop once the log-likelihood changes by less than this.
	MinChange float64
	// Components whose responsibility mass is below this keep their
	// previous parameters.
	MinSampleWeight float64
	// Added to the covariance diagonal on every refit.
	Regularization float64
	// Lower bound for per-sample likelihoods when summing the log-likelihood.
	LikelihoodFloor float64
	// Parallel workers for the E-step; < 1 means one per CPU.
	Workers int
	Logger  golog.Logger
}

// DefaultEMOptions returns the settings used by the segmenter.
func DefaultEMOptions() EMOptions {
	return EMOptions{
		MaxIterations:   10,
		MinChange:       1e-4,
		MinSampleWeight: 1,
		Regularization:  0.01,
		LikelihoodFloor: 1e-300,
	}
}

// EMResult describes a finished fit.
type EMResult struct {
	LogLikelihood float64
	Iterations    int
	Converged     bool
	Skipped       int // component refits skipped in the last M-step
	Singular      int
}

// Fit runs EM on samples, mutating m in place. An empty sample set leaves
// the model unchanged and is not an error.
func Fit(samples [][]float64, m *MixtureModel, opt EMOptions) (EMResult, error) {
	var res EMResult
	if m == nil {
		return res, errors.New("gmm: nil mixture model")
	}
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	d := m.Dim()
	for i, x := range samples {
		if len(x) != d {
			return res, errors.Errorf("gmm: sample %d has dimension %d, model has %d", i, len(x), d)
		}
	}
	if len(samples) == 0 {
		logger.Debugw("em skipped, no samples", "components", m.K())
		return res, nil
	}

	k := m.K()
	n := len(samples)
	resp := make([][]float64, k)
	for i := range resp {
		resp[i] = make([]float64, n)
	}
	ranges := workers.Split(n, opt.Workers)
	partial := make([]float64, len(ranges))
	logFloor := math.Log(opt.LikelihoodFloor)
	if opt.LikelihoodFloor <= 0 {
		logFloor = math.Inf(-1)
	}

	prev := math.Inf(-1)
	for it := 1; it <= max(opt.MaxIterations, 1); it++ {
		if err := workers.Each(ranges, func(_ int, r workers.Range) error {
			eStep(samples, m, resp, r)
			return nil
		}); err != nil {
			return res, err
		}

		st := m.Update(samples, resp, opt.MinSampleWeight, opt.Regularization)

		if err := workers.Each(ranges, func(c int, r workers.Range) error {
			buf := make([]float64, k)
			sum := 0.0
			for i := r.Lo; i < r.Hi; i++ {
				sum += max(m.logTerms(samples[i], buf), logFloor)
			}
			partial[c] = sum
			return nil
		}); err != nil {
			return res, err
		}
		ll := 0.0
		for _, v := range partial {
			ll += v
		}

		res.Iterations = it
		res.LogLikelihood = ll
		res.Skipped = st.Skipped
		res.Singular = st.Singular
		logger.Debugw("em iteration",
			"iteration", it, "samples", n, "logLikelihood", ll,
			"skipped", st.Skipped, "singular", st.Singular)

		if math.Abs(ll-prev) < opt.MinChange {
			res.Converged = true
			break
		}
		prev = ll
	}
	return res, nil
}

// eStep writes normalized responsibilities for samples in r. Samples no
// component can explain get uniform responsibility.
func eStep(samples [][]float64, m *MixtureModel, resp [][]float64, r workers.Range) {
	k := m.K()
	buf := make([]float64, k)
	uniform := 1 / float64(k)
	for i := r.Lo; i < r.Hi; i++ {
		total := m.logTerms(samples[i], buf)
		if math.IsInf(total, 0) || math.IsNaN(total) {
			for c := range k {
				resp[c][i] = uniform
			}
			continue
		}
		for c := range k {
			resp[c][i] = math.Exp(buf[c] - total)
		}
	}
}
