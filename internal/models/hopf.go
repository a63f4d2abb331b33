package models

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/contsim/internal/dynamo"
)

// Hopf is the planar Hopf normal form
//
//	ẋ = λx − ωy − x(x² + y²)
//	ẏ = ωx + λy − y(x² + y²)
//
// whose trivial equilibrium loses stability through a complex pair λ ± iω.
type Hopf struct {
	Omega float64
}

func NewHopf() *Hopf { return &Hopf{Omega: 1} }

func (h *Hopf) Dim() int { return 2 }

func (h *Hopf) Residual(u dynamo.State, lambda float64) dynamo.State {
	x, y := u[0], u[1]
	r2 := x*x + y*y
	return dynamo.State{
		lambda*x - h.Omega*y - x*r2,
		h.Omega*x + lambda*y - y*r2,
	}
}

func (h *Hopf) Jacobian(u dynamo.State, lambda float64) mat.Matrix {
	x, y := u[0], u[1]
	return mat.NewDense(2, 2, []float64{
		lambda - 3*x*x - y*y, -h.Omega - 2*x*y,
		h.Omega - 2*x*y, lambda - x*x - 3*y*y,
	})
}

func (h *Hopf) ParameterDerivative(u dynamo.State, _ float64) dynamo.State {
	return dynamo.State{u[0], u[1]}
}

func (h *Hopf) GetParams() map[string]float64 {
	return map[string]float64{"omega": h.Omega}
}

func (h *Hopf) SetParam(name string, value float64) error {
	if name != "omega" {
		return unknownParam("hopf", name)
	}
	h.Omega = value
	return nil
}
