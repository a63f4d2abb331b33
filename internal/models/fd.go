package models

import (
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/contsim/internal/dynamo"
)

// Evaluator is a problem that only knows its residual.
type Evaluator interface {
	Dim() int
	Residual(u dynamo.State, lambda float64) dynamo.State
}

// FiniteDifference completes an Evaluator into a dynamo.Problem using
// central differences. Jacobian columns are evaluated concurrently, so the
// Evaluator must be safe for concurrent calls.
type FiniteDifference struct {
	Evaluator
	// Step is the absolute perturbation; zero uses fd.Central's default.
	Step float64
}

func NewFiniteDifference(e Evaluator) *FiniteDifference {
	return &FiniteDifference{Evaluator: e}
}

func (f *FiniteDifference) settings() *fd.JacobianSettings {
	return &fd.JacobianSettings{Formula: fd.Central, Step: f.Step, Concurrent: true}
}

func (f *FiniteDifference) Jacobian(u dynamo.State, lambda float64) mat.Matrix {
	n := f.Dim()
	jac := mat.NewDense(n, n, nil)
	fd.Jacobian(jac, func(y, x []float64) {
		copy(y, f.Residual(dynamo.State(x), lambda))
	}, u.Clone(), f.settings())
	return jac
}

// ParameterDerivative differentiates with respect to λ as an n×1 Jacobian.
func (f *FiniteDifference) ParameterDerivative(u dynamo.State, lambda float64) dynamo.State {
	n := f.Dim()
	col := mat.NewDense(n, 1, nil)
	fd.Jacobian(col, func(y, x []float64) {
		copy(y, f.Residual(u, x[0]))
	}, []float64{lambda}, f.settings())
	return dynamo.State(mat.Col(nil, 0, col))
}

func (f *FiniteDifference) GetParams() map[string]float64 {
	if c, ok := f.Evaluator.(dynamo.Configurable); ok {
		return c.GetParams()
	}
	return map[string]float64{}
}

func (f *FiniteDifference) SetParam(name string, value float64) error {
	if c, ok := f.Evaluator.(dynamo.Configurable); ok {
		return c.SetParam(name, value)
	}
	return unknownParam("finite-difference", name)
}
