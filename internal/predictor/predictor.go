// Package predictor computes tangents along a branch and extrapolates the
// next continuation guess from them.
package predictor

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/contsim/internal/dynamo"
	"github.com/san-kum/contsim/internal/linalg"
)

// Source records how a tangent was obtained.
type Source int

const (
	FromBordered Source = iota
	FromSecant
	FromPrevious
)

func (s Source) String() string {
	switch s {
	case FromBordered:
		return "bordered"
	case FromSecant:
		return "secant"
	case FromPrevious:
		return "previous"
	}
	return "unknown"
}

type Predictor struct {
	prob      dynamo.Problem
	backend   dynamo.Backend
	weight    float64
	direction float64
	method    string
	nullTol   float64
}

func New(prob dynamo.Problem, backend dynamo.Backend, cfg dynamo.Config) *Predictor {
	return &Predictor{
		prob:      prob,
		backend:   backend,
		weight:    cfg.Weight,
		direction: cfg.Direction,
		method:    cfg.Predictor,
		nullTol:   cfg.Bifurcation.Nullspace,
	}
}

func (p *Predictor) Weight() float64 { return p.weight }

// InitialTangent returns the unit null vector of [∂F/∂u ∂F/∂λ] at x with
// its λ-component signed like the configured direction. When the nullspace
// is larger than one the vector with the largest λ-component is used.
func (p *Predictor) InitialTangent(x dynamo.Extended) (dynamo.Extended, error) {
	u, lambda := x.U(), x.Lambda()
	a := linalg.Stacked(p.prob.Jacobian(u, lambda), p.prob.ParameterDerivative(u, lambda))
	basis, err := p.backend.Nullspace(a, p.nullTol)
	if err != nil {
		return nil, errors.Wrap(err, "initial tangent")
	}
	if len(basis) == 0 {
		return nil, errors.Wrap(dynamo.ErrDegenerateVector, "initial tangent: empty nullspace")
	}

	best := basis[0]
	for _, v := range basis[1:] {
		if math.Abs(v[len(v)-1]) > math.Abs(best[len(best)-1]) {
			best = v
		}
	}

	t, err := dynamo.Extended(best).Normalize(p.weight)
	if err != nil {
		return nil, err
	}
	if t.Lambda()*p.direction < 0 {
		t = t.Scale(-1)
	}
	return t, nil
}

// Tangent solves [[∂F/∂u, ∂F/∂λ], [prevᵀ_w]]·t = (0, 1) at x, normalizes t
// and orients it so that ⟨t, prev⟩_w > 0.
func (p *Predictor) Tangent(x, prev dynamo.Extended) (dynamo.Extended, error) {
	u, lambda := x.U(), x.Lambda()
	n := x.Dim()
	a := linalg.Bordered(p.prob.Jacobian(u, lambda), p.prob.ParameterDerivative(u, lambda), prev.Row(p.weight))
	rhs := make([]float64, n+1)
	rhs[n] = 1

	sol, err := p.backend.Solve(a, rhs)
	if err != nil {
		return nil, err
	}
	t, err := dynamo.Extended(sol).Normalize(p.weight)
	if err != nil {
		return nil, err
	}
	return p.orient(t, prev), nil
}

// Secant returns the unit direction from one point to another.
func (p *Predictor) Secant(from, to, prev dynamo.Extended) (dynamo.Extended, error) {
	t, err := to.Sub(from).Normalize(p.weight)
	if err != nil {
		return nil, err
	}
	return p.orient(t, prev), nil
}

func (p *Predictor) orient(t, prev dynamo.Extended) dynamo.Extended {
	if prev != nil && t.WDot(prev, p.weight) < 0 {
		return t.Scale(-1)
	}
	return t
}

// NextTangent computes the tangent at x continuing prevT. A singular
// bordered system falls back to the secant from prevX, then to prevT itself;
// the solver error is returned alongside the fallback tangent.
func (p *Predictor) NextTangent(x, prevX, prevT dynamo.Extended) (dynamo.Extended, Source, error) {
	t, err := p.Tangent(x, prevT)
	if err == nil {
		return t, FromBordered, nil
	}
	if prevX != nil {
		if s, serr := p.Secant(prevX, x, prevT); serr == nil {
			return s, FromSecant, err
		}
	}
	return prevT.Clone(), FromPrevious, err
}

// Predict returns the guess for a step of length ds from the last point.
// With the secant method and a previous point available the guess follows
// the secant direction; otherwise it follows the tangent.
func (p *Predictor) Predict(last dynamo.Point, prev *dynamo.Point, ds float64) dynamo.Extended {
	if p.method == dynamo.PredictSecant && prev != nil {
		if s, err := p.Secant(prev.X, last.X, last.Tangent); err == nil {
			return last.X.Axpy(ds, s)
		}
	}
	return last.X.Axpy(ds, last.Tangent)
}
