// Package switching computes the directions of branches emanating from a
// branch point.
package switching

import (
	"github.com/pkg/errors"

	"github.com/san-kum/contsim/internal/dynamo"
	"github.com/san-kum/contsim/internal/linalg"
)

// MaxNullity is the rank deficiency of the bordered Jacobian at a simple
// branch point. A wider numerical nullspace means the operator has lost
// precision rather than that more branches meet.
const MaxNullity = 1

type Switcher struct {
	prob    dynamo.Problem
	backend dynamo.EigenSolver
	weight  float64
	tol     float64
}

func New(prob dynamo.Problem, backend dynamo.EigenSolver, cfg dynamo.Config) *Switcher {
	return &Switcher{
		prob:    prob,
		backend: backend,
		weight:  cfg.Weight,
		tol:     cfg.Bifurcation.Nullspace,
	}
}

// Directions returns unit tangents transverse to the known branch at x,
// two of opposite sign per nullspace vector of the bordered Jacobian. The
// vectors are orthogonalized against tangent in the weighted inner product.
// A nullspace that vanishes after orthogonalization, or that is wider than
// MaxNullity, is reported as dynamo.ErrNoTransverseDirection.
func (s *Switcher) Directions(x, tangent dynamo.Extended) ([]dynamo.Extended, error) {
	u, lambda := x.U(), x.Lambda()
	b := linalg.Bordered(s.prob.Jacobian(u, lambda), s.prob.ParameterDerivative(u, lambda), tangent.Row(s.weight))
	basis, err := s.backend.Nullspace(b, s.tol)
	if err != nil {
		return nil, errors.Wrap(err, "switching: nullspace")
	}

	var kept []dynamo.Extended
	for _, v := range basis {
		d := dynamo.Extended(v)
		d = d.Axpy(-d.WDot(tangent, s.weight), tangent)
		for _, k := range kept {
			d = d.Axpy(-d.WDot(k, s.weight), k)
		}
		unit, err := d.Normalize(s.weight)
		if err != nil || unit.WDot(d, s.weight) < s.tol {
			continue
		}
		kept = append(kept, unit)
	}
	if len(kept) == 0 {
		return nil, errors.Wrapf(dynamo.ErrNoTransverseDirection, "at λ=%.6g (%d nullspace vectors)", lambda, len(basis))
	}
	if len(kept) > MaxNullity {
		return nil, errors.Wrapf(dynamo.ErrNoTransverseDirection, "at λ=%.6g: nullspace of dimension %d is degenerate", lambda, len(kept))
	}

	dirs := make([]dynamo.Extended, 0, 2*len(kept))
	for _, k := range kept {
		dirs = append(dirs, k, k.Scale(-1))
	}
	return dirs, nil
}
