package grabcut

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/multierr"
	"go.viam.com/test"

	"github.com/setanarut/grabcut/gmm"
)

func TestDefaultOptionsValid(t *testing.T) {
	opt := DefaultOptions()
	test.That(t, opt.Validate(), test.ShouldBeNil)
	test.That(t, opt.Components, test.ShouldEqual, 5)
	test.That(t, opt.Lambda, test.ShouldEqual, 0.01)
	test.That(t, opt.LikelihoodFloor, test.ShouldEqual, 1e-300)
	test.That(t, opt.Init, test.ShouldEqual, gmm.InitQuasiRandom)
}

func TestOptionsValidateCollectsErrors(t *testing.T) {
	opt := DefaultOptions()
	opt.Components = 0
	opt.Lambda = math.NaN()
	opt.LikelihoodFloor = 1
	opt.Workers = -1
	err := opt.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, multierr.Errors(err), test.ShouldHaveLength, 4)
	test.That(t, err.Error(), test.ShouldContainSubstring, "components must be >= 1")
	test.That(t, err.Error(), test.ShouldContainSubstring, "lambda")
	test.That(t, err.Error(), test.ShouldContainSubstring, "likelihood_floor")
	test.That(t, err.Error(), test.ShouldContainSubstring, "workers")

	opt = DefaultOptions()
	opt.Init = gmm.InitMethod(42)
	test.That(t, opt.Validate(), test.ShouldNotBeNil)
}

func TestOptionsDerived(t *testing.T) {
	opt := DefaultOptions()
	opt.Workers = 3
	em := opt.emOptions()
	test.That(t, em.MaxIterations, test.ShouldEqual, opt.EMMaxIterations)
	test.That(t, em.Regularization, test.ShouldEqual, opt.Regularization)
	test.That(t, em.Workers, test.ShouldEqual, 3)
	g := opt.graphOptions()
	test.That(t, g.Lambda, test.ShouldEqual, opt.Lambda)
	test.That(t, g.LikelihoodFloor, test.ShouldEqual, opt.LikelihoodFloor)
}

func TestSaveLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grabcut.yaml")
	opt := DefaultOptions()
	opt.Components = 3
	opt.Lambda = 0.05
	opt.Init = gmm.InitKMeans
	opt.Workers = 2
	test.That(t, SaveOptions(opt, path), test.ShouldBeNil)

	data, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, "init: kmeans")

	loaded, err := LoadOptions(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded, test.ShouldResemble, opt)
}

func TestLoadOptionsMissingFile(t *testing.T) {
	opt, err := LoadOptions(filepath.Join(t.TempDir(), "absent.yaml"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opt, test.ShouldResemble, DefaultOptions())
}

func TestLoadOptionsPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	test.That(t, os.WriteFile(path, []byte("max_iterations: 4\ninit: dominant\n"), 0o644), test.ShouldBeNil)
	opt, err := LoadOptions(path)
	test.That(t, err, test.ShouldBeNil)
	want := DefaultOptions()
	want.MaxIterations = 4
	want.Init = gmm.InitDominant
	test.That(t, opt, test.ShouldResemble, want)
}

func TestLoadOptionsInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	test.That(t, os.WriteFile(bad, []byte("init: random\n"), 0o644), test.ShouldBeNil)
	_, err := LoadOptions(bad)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "parsing options")

	invalid := filepath.Join(dir, "invalid.yaml")
	test.That(t, os.WriteFile(invalid, []byte("components: 0\nlambda: -1\n"), 0o644), test.ShouldBeNil)
	_, err = LoadOptions(invalid)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "invalid options")
	test.That(t, err.Error(), test.ShouldContainSubstring, "components")
}
