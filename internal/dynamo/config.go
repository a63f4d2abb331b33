package dynamo

import (
	"github.com/pkg/errors"
)

// Predictor methods.
const (
	PredictTangent = "tangent"
	PredictSecant  = "secant"
)

// Test function names understood by the bifurcation monitor.
const (
	TestFold        = "fold"
	TestBordered    = "bordered"
	TestEigenvalue  = "eigenvalue"
	TestDeterminant = "determinant"
)

type StepConfig struct {
	Initial float64 `yaml:"initial"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	// Target is the desired number of Newton iterations per step.
	Target   int     `yaml:"target_iterations"`
	MinScale float64 `yaml:"min_scale"`
	MaxScale float64 `yaml:"max_scale"`
}

type NewtonConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
	// CorrectionTolerance bounds the last Newton correction of a converged
	// iterate, so a small residual alone never accepts a point.
	CorrectionTolerance float64 `yaml:"correction_tolerance"`
	StepTolerance       float64 `yaml:"step_tolerance"`
	MinDamping          float64 `yaml:"min_damping"`
}

type BifurcationConfig struct {
	Tests []string `yaml:"tests"`
	// ZeroTolerance below which a test value carries no sign.
	ZeroTolerance float64 `yaml:"zero_tolerance"`
	Tolerance     float64 `yaml:"localization_tolerance"`
	MinBracket    float64 `yaml:"localization_step"`
	MaxIterations int     `yaml:"localization_max_iterations"`
	Nullspace     float64 `yaml:"nullspace_tolerance"`
	// NumEigenvalues limits the spectrum kept per point; <= 0 keeps all.
	NumEigenvalues int `yaml:"num_eigenvalues"`
}

type SwitchingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Step        float64 `yaml:"step"`
	MaxDepth    int     `yaml:"max_depth"`
	MaxBranches int     `yaml:"max_branches"`
	Parallel    bool    `yaml:"parallel"`
	Workers     int     `yaml:"workers"`
}

// Config holds the continuation parameters.
type Config struct {
	Step   StepConfig   `yaml:"step"`
	Newton NewtonConfig `yaml:"newton"`
	// Weight is the relative weight w of the u-component in the arclength
	// constraint; the λ-component gets 1-w.
	Weight float64 `yaml:"weight"`
	// Direction is the sign of dλ/ds at the start of a branch.
	Direction     float64           `yaml:"direction"`
	Predictor     string            `yaml:"predictor"`
	Bifurcation   BifurcationConfig `yaml:"bifurcation"`
	Switching     SwitchingConfig   `yaml:"switching"`
	ValidateState bool              `yaml:"validate_state"`
}

func DefaultConfig() Config {
	return Config{
		Step: StepConfig{
			Initial:  0.05,
			Min:      1e-6,
			Max:      0.25,
			Target:   3,
			MinScale: 0.5,
			MaxScale: 2.0,
		},
		Newton: NewtonConfig{
			MaxIterations:       10,
			Tolerance:           1e-9,
			CorrectionTolerance: 1e-8,
			StepTolerance:       1e-12,
			MinDamping:          1.0 / 64,
		},
		Weight:    0.5,
		Direction: 1,
		Predictor: PredictTangent,
		Bifurcation: BifurcationConfig{
			Tests:          []string{TestFold, TestBordered, TestEigenvalue},
			ZeroTolerance:  1e-12,
			Tolerance:      1e-8,
			MinBracket:     1e-12,
			MaxIterations:  40,
			Nullspace:      1e-6,
			NumEigenvalues: 0,
		},
		Switching: SwitchingConfig{
			Enabled:     true,
			Step:        0.05,
			MaxDepth:    2,
			MaxBranches: 16,
			Parallel:    true,
			Workers:     4,
		},
		ValidateState: true,
	}
}

// Validate checks the parameters for consistency.
func (c Config) Validate() error {
	switch {
	case c.Step.Initial <= 0:
		return errors.Wrapf(ErrInvalidConfig, "initial step must be positive, got %g", c.Step.Initial)
	case c.Step.Min <= 0 || c.Step.Max < c.Step.Min:
		return errors.Wrapf(ErrInvalidConfig, "step bounds [%g, %g] invalid", c.Step.Min, c.Step.Max)
	case c.Step.Initial < c.Step.Min || c.Step.Initial > c.Step.Max:
		return errors.Wrapf(ErrInvalidConfig, "initial step %g outside [%g, %g]", c.Step.Initial, c.Step.Min, c.Step.Max)
	case c.Step.Target <= 0:
		return errors.Wrapf(ErrInvalidConfig, "target iterations must be positive, got %d", c.Step.Target)
	case c.Step.MinScale <= 0 || c.Step.MinScale > 1 || c.Step.MaxScale < 1:
		return errors.Wrapf(ErrInvalidConfig, "step scale limits [%g, %g] invalid", c.Step.MinScale, c.Step.MaxScale)
	case c.Newton.MaxIterations <= 0:
		return errors.Wrapf(ErrInvalidConfig, "max newton iterations must be positive, got %d", c.Newton.MaxIterations)
	case c.Newton.Tolerance <= 0:
		return errors.Wrapf(ErrInvalidConfig, "tolerance must be positive, got %g", c.Newton.Tolerance)
	case c.Newton.CorrectionTolerance <= 0:
		return errors.Wrapf(ErrInvalidConfig, "correction tolerance must be positive, got %g", c.Newton.CorrectionTolerance)
	case c.Newton.MinDamping <= 0 || c.Newton.MinDamping > 1:
		return errors.Wrapf(ErrInvalidConfig, "min damping must be in (0, 1], got %g", c.Newton.MinDamping)
	case c.Weight <= 0 || c.Weight >= 1:
		return errors.Wrapf(ErrInvalidConfig, "weight must be in (0, 1), got %g", c.Weight)
	case c.Direction != 1 && c.Direction != -1:
		return errors.Wrapf(ErrInvalidConfig, "direction must be +1 or -1, got %g", c.Direction)
	case c.Predictor != PredictTangent && c.Predictor != PredictSecant:
		return errors.Wrapf(ErrInvalidConfig, "unknown predictor %q", c.Predictor)
	case c.Bifurcation.MaxIterations <= 0:
		return errors.Wrapf(ErrInvalidConfig, "localization iterations must be positive, got %d", c.Bifurcation.MaxIterations)
	case c.Switching.Enabled && c.Switching.Step <= 0:
		return errors.Wrapf(ErrInvalidConfig, "switching step must be positive, got %g", c.Switching.Step)
	}
	for _, name := range c.Bifurcation.Tests {
		switch name {
		case TestFold, TestBordered, TestEigenvalue, TestDeterminant:
		default:
			return errors.Wrapf(ErrInvalidConfig, "unknown test function %q", name)
		}
	}
	return nil
}

// HasTest reports whether the named test function is enabled.
func (c Config) HasTest(name string) bool {
	for _, t := range c.Bifurcation.Tests {
		if t == name {
			return true
		}
	}
	return false
}
