package models

import "github.com/san-kum/contsim/internal/dynamo"

// Duffing gives the equilibria of a Duffing oscillator under a constant
// force λ:
//
//	ẋ = v
//	v̇ = −δv − αx − βx³ + λ
//
// With α < 0 the equilibrium curve is S-shaped and folds twice, at
// x = ±√(−α/3β). Only the residual is provided; wrap it with
// FiniteDifference for the derivatives.
type Duffing struct {
	Alpha, Beta, Delta float64
}

func NewDuffing() *Duffing {
	return &Duffing{Alpha: -1.0, Beta: 1.0, Delta: 0.3}
}

func (d *Duffing) Dim() int { return 2 }

func (d *Duffing) Residual(s dynamo.State, lambda float64) dynamo.State {
	x, v := s[0], s[1]
	return dynamo.State{v, -d.Delta*v - d.Alpha*x - d.Beta*x*x*x + lambda}
}

func (d *Duffing) GetParams() map[string]float64 {
	return map[string]float64{"alpha": d.Alpha, "beta": d.Beta, "delta": d.Delta}
}

func (d *Duffing) SetParam(n string, v float64) error {
	switch n {
	case "alpha":
		d.Alpha = v
	case "beta":
		d.Beta = v
	case "delta":
		d.Delta = v
	default:
		return unknownParam("duffing", n)
	}
	return nil
}
