// Package newton implements the damped Newton corrector for pseudo-arclength
// continuation. It solves the augmented system
//
//	F(u, λ) = 0
//	⟨t, x − x₀⟩_w − Δs = 0
//
// where x₀ is the anchor point, t the unit tangent at x₀ and ⟨·,·⟩_w the
// weighted inner product of dynamo.Extended.
package newton

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/contsim/internal/dynamo"
	"github.com/san-kum/contsim/internal/linalg"
)

var errStagnated = errors.New("newton: correction below step tolerance")

// Request describes one correction.
type Request struct {
	Anchor  dynamo.Extended
	Tangent dynamo.Extended
	Ds      float64
	// Guess is the starting iterate; nil means Anchor + Ds·Tangent.
	Guess dynamo.Extended
}

// Result of a converged correction. Iterations counts linear solves.
type Result struct {
	X          dynamo.Extended
	Iterations int
	Residual   float64
}

type Corrector struct {
	prob   dynamo.Problem
	solver dynamo.LinearSolver
	cfg    dynamo.NewtonConfig
	weight float64
}

func New(prob dynamo.Problem, solver dynamo.LinearSolver, cfg dynamo.NewtonConfig, weight float64) *Corrector {
	return &Corrector{prob: prob, solver: solver, cfg: cfg, weight: weight}
}

// Residual returns the augmented residual [F; N] at x.
func (c *Corrector) Residual(req Request, x dynamo.Extended) []float64 {
	f := c.prob.Residual(x.U(), x.Lambda())
	r := make([]float64, len(f)+1)
	copy(r, f)
	r[len(f)] = req.Tangent.WDot(x.Sub(req.Anchor), c.weight) - req.Ds
	return r
}

// Correct runs damped Newton from the request's guess. At least one linear
// solve is always performed, since the correction is part of the
// convergence test. Failures are
// returned as *dynamo.ConvergenceError; a linear solver failure becomes its
// Cause with Iterations set to the solve that failed.
func (c *Corrector) Correct(ctx context.Context, req Request) (Result, error) {
	n := c.prob.Dim()
	if len(req.Anchor) != n+1 || len(req.Tangent) != n+1 {
		return Result{}, errors.Wrapf(dynamo.ErrDimensionMismatch,
			"newton: anchor %d, tangent %d, problem %d", len(req.Anchor), len(req.Tangent), n)
	}

	x := req.Guess
	if x == nil {
		x = req.Anchor.Axpy(req.Ds, req.Tangent)
	} else {
		if len(x) != n+1 {
			return Result{}, errors.Wrapf(dynamo.ErrDimensionMismatch, "newton: guess %d, problem %d", len(x), n)
		}
		x = x.Clone()
	}

	r := c.Residual(req, x)
	rn := dynamo.State(r).Norm()
	if !x.IsValid() || math.IsNaN(rn) {
		return Result{}, &dynamo.ConvergenceError{Residual: rn, Cause: dynamo.ErrInvalidState}
	}

	row := req.Tangent.Row(c.weight)
	for it := 1; it <= c.cfg.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return Result{}, &dynamo.ConvergenceError{Iterations: it - 1, Residual: rn, Cause: err}
		}

		u, lambda := x.U(), x.Lambda()
		jac := linalg.Bordered(c.prob.Jacobian(u, lambda), c.prob.ParameterDerivative(u, lambda), row)
		rhs := make([]float64, len(r))
		for i, v := range r {
			rhs[i] = -v
		}
		dx, err := c.solver.Solve(jac, rhs)
		if err != nil {
			return Result{}, &dynamo.ConvergenceError{Iterations: it, Residual: rn, Cause: err}
		}

		step := dynamo.Extended(dx)
		alpha := 1.0
		var trial dynamo.Extended
		var tr []float64
		var tn float64
		for {
			trial = x.Axpy(alpha, step)
			tr = c.Residual(req, trial)
			tn = dynamo.State(tr).Norm()
			if (trial.IsValid() && tn <= rn) || alpha <= c.cfg.MinDamping {
				break
			}
			alpha /= 2
		}
		if !trial.IsValid() || math.IsNaN(tn) || math.IsInf(tn, 0) {
			return Result{}, &dynamo.ConvergenceError{Iterations: it, Residual: rn, Cause: dynamo.ErrInvalidState}
		}

		moved := alpha * dynamo.State(dx).Norm()
		x, r, rn = trial, tr, tn
		// both the residual and the last correction must be small
		if rn < c.cfg.Tolerance && moved < c.cfg.CorrectionTolerance {
			return Result{X: x, Iterations: it, Residual: rn}, nil
		}
		if moved < c.cfg.StepTolerance {
			return Result{}, &dynamo.ConvergenceError{Iterations: it, Residual: rn, Cause: errStagnated}
		}
	}

	return Result{}, &dynamo.ConvergenceError{Iterations: c.cfg.MaxIterations, Residual: rn}
}
