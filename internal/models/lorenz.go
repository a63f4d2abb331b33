package models

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/contsim/internal/dynamo"
)

// Lorenz gives the equilibria of the Lorenz system with the Rayleigh number ρ
// as continuation parameter. The conduction state loses stability to the
// convecting branches at ρ = 1, which in turn undergo a Hopf bifurcation at
// ρ = σ(σ+β+3)/(σ−β−1).
type Lorenz struct {
	Sigma, Beta float64
}

func NewLorenz() *Lorenz { return &Lorenz{Sigma: 10, Beta: 8.0 / 3.0} }

func (l *Lorenz) Dim() int { return 3 }

func (l *Lorenz) Residual(s dynamo.State, rho float64) dynamo.State {
	return dynamo.State{l.Sigma * (s[1] - s[0]), s[0]*(rho-s[2]) - s[1], s[0]*s[1] - l.Beta*s[2]}
}

func (l *Lorenz) Jacobian(s dynamo.State, rho float64) mat.Matrix {
	x, y, z := s[0], s[1], s[2]
	return mat.NewDense(3, 3, []float64{
		-l.Sigma, l.Sigma, 0,
		rho - z, -1, -x,
		y, x, -l.Beta,
	})
}

func (l *Lorenz) ParameterDerivative(s dynamo.State, _ float64) dynamo.State {
	return dynamo.State{0, s[0], 0}
}

// HopfRho is the analytic Hopf point of the convecting branches.
func (l *Lorenz) HopfRho() float64 {
	return l.Sigma * (l.Sigma + l.Beta + 3) / (l.Sigma - l.Beta - 1)
}

func (l *Lorenz) GetParams() map[string]float64 {
	return map[string]float64{"sigma": l.Sigma, "beta": l.Beta}
}

func (l *Lorenz) SetParam(name string, value float64) error {
	switch name {
	case "sigma":
		l.Sigma = value
	case "beta":
		l.Beta = value
	default:
		return unknownParam("lorenz", name)
	}
	return nil
}
