package grabcut

import (
	"math"
	"os"
	"runtime"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/setanarut/grabcut/gmm"
)

type Options struct {
	// Gaussian components per colour model.
	// 5 works for most natural images. More components follow textured
	// regions more closely but need more pixels per component to fit.
	Components int `yaml:"components"`
	// Segmentation rounds before giving up on convergence.
	// Most images settle within 3-8 rounds.
	MaxIterations int `yaml:"max_iterations"`
	// EM iterations per model fit.
	EMMaxIterations int `yaml:"em_max_iterations"`
	// EM stops once the log-likelihood changes by less than this.
	EMMinChange float64 `yaml:"em_min_change"`
	// Data term weight. Higher values follow colour statistics more and
	// smooth boundaries less. Ideal start: 0.005-0.05.
	Lambda float64 `yaml:"lambda"`
	// Lowest likelihood used in the data term; smaller values are clamped.
	LikelihoodFloor float64 `yaml:"likelihood_floor"`
	// A component is refitted only when its responsibility mass reaches
	// this many pixels.
	MinSampleWeight float64 `yaml:"min_sample_weight"`
	// Added to every covariance diagonal after refitting.
	Regularization float64 `yaml:"regularization"`
	// Component seeding: quasirandom, kmeans or dominant.
	Init gmm.InitMethod `yaml:"init"`
	// Parallel workers for EM and graph construction. 0 means one per CPU.
	Workers int `yaml:"workers"`

	Logger golog.Logger `yaml:"-"`
}

func DefaultOptions() Options {
	return Options{
		Components:      5,
		MaxIterations:   10,
		EMMaxIterations: 10,
		EMMinChange:     1e-4,
		Lambda:          0.01,
		LikelihoodFloor: 1e-300,
		MinSampleWeight: 1,
		Regularization:  0.01,
		Init:            gmm.InitQuasiRandom,
		Workers:         runtime.NumCPU(),
	}
}

// Validate reports every invalid field.
func (o Options) Validate() error {
	var err error
	if o.Components < 1 {
		err = multierr.Append(err, errors.Errorf("components must be >= 1, got %d", o.Components))
	}
	if o.MaxIterations < 1 {
		err = multierr.Append(err, errors.Errorf("max_iterations must be >= 1, got %d", o.MaxIterations))
	}
	if o.EMMaxIterations < 1 {
		err = multierr.Append(err, errors.Errorf("em_max_iterations must be >= 1, got %d", o.EMMaxIterations))
	}
	if !(o.EMMinChange >= 0) {
		err = multierr.Append(err, errors.Errorf("em_min_change must be >= 0, got %v", o.EMMinChange))
	}
	if !(o.Lambda > 0) || math.IsInf(o.Lambda, 0) {
		err = multierr.Append(err, errors.Errorf("lambda must be positive and finite, got %v", o.Lambda))
	}
	if !(o.LikelihoodFloor > 0) || o.LikelihoodFloor >= 1 {
		err = multierr.Append(err, errors.Errorf("likelihood_floor must be in (0, 1), got %v", o.LikelihoodFloor))
	}
	if !(o.MinSampleWeight >= 0) {
		err = multierr.Append(err, errors.Errorf("min_sample_weight must be >= 0, got %v", o.MinSampleWeight))
	}
	if !(o.Regularization >= 0) {
		err = multierr.Append(err, errors.Errorf("regularization must be >= 0, got %v", o.Regularization))
	}
	if o.Init < gmm.InitQuasiRandom || o.Init > gmm.InitDominant {
		err = multierr.Append(err, errors.Errorf("unknown init method %d", o.Init))
	}
	if o.Workers < 0 {
		err = multierr.Append(err, errors.Errorf("workers must be >= 0, got %d", o.Workers))
	}
	return err
}

func (o Options) emOptions() gmm.EMOptions {
	return gmm.EMOptions{
		MaxIterations:   o.EMMaxIterations,
		MinChange:       o.EMMinChange,
		MinSampleWeight: o.MinSampleWeight,
		Regularization:  o.Regularization,
		LikelihoodFloor: o.LikelihoodFloor,
		Workers:         o.Workers,
		Logger:          o.Logger,
	}
}

func (o Options) graphOptions() GraphOptions {
	return GraphOptions{
		Lambda:          o.Lambda,
		LikelihoodFloor: o.LikelihoodFloor,
		Workers:         o.Workers,
		Logger:          o.Logger,
	}
}

// LoadOptions reads YAML options from path on top of DefaultOptions. A
// missing file yields the defaults.
func LoadOptions(path string) (Options, error) {
	opt := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opt, nil
		}
		return opt, errors.Wrapf(err, "reading options %s", path)
	}
	if err := yaml.Unmarshal(data, &opt); err != nil {
		return opt, errors.Wrapf(err, "parsing options %s", path)
	}
	if err := opt.Validate(); err != nil {
		return opt, errors.Wrapf(err, "invalid options in %s", path)
	}
	return opt, nil
}

// SaveOptions writes opt to path as YAML.
func SaveOptions(opt Options, path string) error {
	data, err := yaml.Marshal(opt)
	if err != nil {
		return errors.Wrap(err, "encoding options")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing options %s", path)
	}
	return nil
}
