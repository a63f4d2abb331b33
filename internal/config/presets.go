package config

import (
	"sort"

	"github.com/san-kum/contsim/internal/dynamo"
)

func preset(problem string, mutate func(c *Config)) *Config {
	c := DefaultConfig()
	c.Problem = problem
	mutate(c)
	return c
}

var Presets = map[string]map[string]*Config{
	"pitchfork": {
		"trivial": preset("pitchfork", func(c *Config) {
			c.Start = StartConfig{U: []float64{0}, Lambda: -0.5}
		}),
		"upper": preset("pitchfork", func(c *Config) {
			c.Start = StartConfig{U: []float64{1}, Lambda: 1}
			c.Stop.LambdaMax = 2
			c.Continuation.Direction = -1
		}),
	},
	"transcritical": {
		"trivial": preset("transcritical", func(c *Config) {
			c.Start = StartConfig{U: []float64{0}, Lambda: -0.5}
		}),
	},
	"bratu": {
		"lower": preset("bratu", func(c *Config) {
			c.Params = map[string]float64{"n": 20}
			c.Start = StartConfig{Lambda: 0}
			// the upper branch only approaches λ = 0 as ‖u‖ grows without bound
			c.Stop = StopConfig{MaxSteps: 400, MaxArclength: 40, LambdaMin: 0.02, LambdaMax: 4}
			c.Continuation.Step.Max = 0.5
		}),
		"coarse": preset("bratu", func(c *Config) {
			c.Params = map[string]float64{"n": 8}
			c.Start = StartConfig{Lambda: 0}
			c.Stop = StopConfig{MaxSteps: 200, MaxArclength: 30, LambdaMin: 0.02, LambdaMax: 4}
		}),
	},
	"hopf": {
		"origin": preset("hopf", func(c *Config) {
			c.Start = StartConfig{U: []float64{0, 0}, Lambda: -0.5}
		}),
	},
	"lorenz": {
		"conduction": preset("lorenz", func(c *Config) {
			c.Start = StartConfig{U: []float64{0, 0, 0}, Lambda: 0.5}
			c.Stop = StopConfig{MaxSteps: 600, LambdaMin: 0, LambdaMax: 30}
			c.Continuation.Step.Max = 1
			c.Continuation.Switching.MaxDepth = 1
		}),
	},
	"duffing": {
		"hysteresis": preset("duffing", func(c *Config) {
			c.Start = StartConfig{U: []float64{-1.3, 0}, Lambda: -1}
			c.Continuation.Bifurcation.Tests = []string{dynamo.TestFold, dynamo.TestEigenvalue}
		}),
		"monostable": preset("duffing", func(c *Config) {
			c.Params = map[string]float64{"alpha": 1}
			c.Start = StartConfig{U: []float64{-0.7, 0}, Lambda: -1}
		}),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(problem, name string) *Config {
	problemPresets, ok := Presets[problem]
	if !ok {
		return nil
	}
	cfg, ok := problemPresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(problem string) []string {
	problemPresets, ok := Presets[problem]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(problemPresets))
	for name := range problemPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
