package experiment

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/contsim/internal/dynamo"
	"github.com/san-kum/contsim/internal/models"
)

// ErrUnknownProblem is returned for names missing from the registry.
var ErrUnknownProblem = errors.New("experiment: unknown problem")

type entry struct {
	description string
	// sizeParam names the parameter that fixes the problem dimension; it is
	// consumed by the constructor instead of being set on the problem.
	sizeParam   string
	defaultSize int
	build       func(size int) dynamo.Problem
}

type Registry struct {
	problems map[string]entry
}

func NewRegistry() *Registry {
	r := &Registry{problems: make(map[string]entry)}

	r.problems["pitchfork"] = entry{
		description: "λu − u³, symmetric branch point at the origin",
		build:       func(int) dynamo.Problem { return models.NewPitchfork() },
	}
	r.problems["transcritical"] = entry{
		description: "λu − u², exchange of stability at the origin",
		build:       func(int) dynamo.Problem { return models.NewTranscritical() },
	}
	r.problems["bratu"] = entry{
		description: "u'' + λeᵘ = 0 on a uniform mesh, fold near λ = 3.51",
		sizeParam:   "n",
		defaultSize: 20,
		build:       func(n int) dynamo.Problem { return models.NewBratu(n) },
	}
	r.problems["hopf"] = entry{
		description: "planar Hopf normal form, complex pair crossing at λ = 0",
		build:       func(int) dynamo.Problem { return models.NewHopf() },
	}
	r.problems["lorenz"] = entry{
		description: "Lorenz equilibria in ρ, pitchfork at ρ = 1 and Hopf on the convecting branches",
		build:       func(int) dynamo.Problem { return models.NewLorenz() },
	}
	r.problems["duffing"] = entry{
		description: "forced Duffing equilibria with finite-difference derivatives, two folds",
		build: func(int) dynamo.Problem {
			return models.NewFiniteDifference(models.NewDuffing())
		},
	}

	return r
}

// GetProblem builds the named problem and applies params to it.
func (r *Registry) GetProblem(name string, params map[string]float64) (dynamo.Problem, error) {
	e, ok := r.problems[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProblem, "%q", name)
	}

	size := e.defaultSize
	if e.sizeParam != "" {
		if v, ok := params[e.sizeParam]; ok {
			size = int(v)
		}
		if size < 1 {
			return nil, errors.Wrapf(dynamo.ErrInvalidConfig, "%s: %s must be at least 1", name, e.sizeParam)
		}
	}
	prob := e.build(size)

	keys := make([]string, 0, len(params))
	for k := range params {
		if k != e.sizeParam || e.sizeParam == "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return prob, nil
	}
	sort.Strings(keys)

	c, ok := prob.(dynamo.Configurable)
	if !ok {
		return nil, errors.Wrapf(models.ErrUnknownParam, "%s takes no parameters, got %q", name, keys[0])
	}
	for _, k := range keys {
		if err := c.SetParam(k, params[k]); err != nil {
			return nil, err
		}
	}
	return prob, nil
}

// Params reports the settable parameters of a problem with their defaults.
func (r *Registry) Params(name string) (map[string]float64, error) {
	e, ok := r.problems[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProblem, "%q", name)
	}
	out := make(map[string]float64)
	prob := e.build(e.defaultSize)
	if c, ok := prob.(dynamo.Configurable); ok {
		for k, v := range c.GetParams() {
			out[k] = v
		}
	}
	if e.sizeParam != "" {
		out[e.sizeParam] = float64(e.defaultSize)
	}
	return out, nil
}

func (r *Registry) Describe(name string) string {
	return r.problems[name].description
}

func (r *Registry) ListProblems() []string {
	names := make([]string, 0, len(r.problems))
	for name := range r.problems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
