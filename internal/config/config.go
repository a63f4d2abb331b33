package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/contsim/internal/continuation"
	"github.com/san-kum/contsim/internal/dynamo"
)

const (
	DefaultProblem   = "pitchfork"
	DefaultLambda    = -0.5
	DefaultMaxSteps  = 200
	DefaultLambdaMin = -1.0
	DefaultLambdaMax = 1.0
)

// Config describes one continuation run.
type Config struct {
	Problem      string             `yaml:"problem"`
	Params       map[string]float64 `yaml:"params,omitempty"`
	Start        StartConfig        `yaml:"start"`
	Stop         StopConfig         `yaml:"stop"`
	Continuation dynamo.Config      `yaml:"continuation"`
}

type StartConfig struct {
	// U is the initial guess; empty means the zero vector of the problem's
	// dimension.
	U      []float64 `yaml:"u,omitempty"`
	Lambda float64   `yaml:"lambda"`
}

// StopConfig bounds a branch. Zero values disable MaxSteps and
// MaxArclength; the λ window is disabled when LambdaMin >= LambdaMax.
type StopConfig struct {
	MaxSteps     int     `yaml:"max_steps"`
	MaxArclength float64 `yaml:"max_arclength"`
	LambdaMin    float64 `yaml:"lambda_min"`
	LambdaMax    float64 `yaml:"lambda_max"`
}

func DefaultConfig() *Config {
	return &Config{
		Problem: DefaultProblem,
		Start:   StartConfig{Lambda: DefaultLambda},
		Stop: StopConfig{
			MaxSteps:  DefaultMaxSteps,
			LambdaMin: DefaultLambdaMin,
			LambdaMax: DefaultLambdaMax,
		},
		Continuation: dynamo.DefaultConfig(),
	}
}

// Load reads a YAML run file. Fields missing from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Problem == "" {
		return errors.Wrap(dynamo.ErrInvalidConfig, "problem name is empty")
	}
	if c.Stop.MaxSteps < 0 || c.Stop.MaxArclength < 0 {
		return errors.Wrap(dynamo.ErrInvalidConfig, "stop limits must not be negative")
	}
	if c.Stop.MaxSteps == 0 && c.Stop.MaxArclength == 0 && c.Stop.LambdaMin >= c.Stop.LambdaMax {
		return errors.Wrap(dynamo.ErrInvalidConfig, "no stop condition configured")
	}
	return c.Continuation.Validate()
}

// InitialState returns the start guess for a problem of dimension dim.
func (c *Config) InitialState(dim int) (dynamo.State, error) {
	if len(c.Start.U) == 0 {
		return make(dynamo.State, dim), nil
	}
	if len(c.Start.U) != dim {
		return nil, errors.Wrapf(dynamo.ErrDimensionMismatch, "start state has %d entries, problem %d", len(c.Start.U), dim)
	}
	return dynamo.State(c.Start.U).Clone(), nil
}

// Terminator combines the configured stop conditions.
func (c *Config) Terminator() continuation.Terminator {
	var ts []continuation.Terminator
	if c.Stop.MaxSteps > 0 {
		ts = append(ts, continuation.MaxSteps(c.Stop.MaxSteps))
	}
	if c.Stop.MaxArclength > 0 {
		ts = append(ts, continuation.MaxArclength(c.Stop.MaxArclength))
	}
	if c.Stop.LambdaMin < c.Stop.LambdaMax {
		ts = append(ts, continuation.ParameterBounds(c.Stop.LambdaMin, c.Stop.LambdaMax))
	}
	return continuation.Any(ts...)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	out.Start.U = append([]float64(nil), c.Start.U...)
	out.Continuation.Bifurcation.Tests = append([]string(nil), c.Continuation.Bifurcation.Tests...)
	return &out
}
