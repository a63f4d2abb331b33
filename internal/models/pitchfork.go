package models

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/contsim/internal/dynamo"
)

// Pitchfork is the scalar normal form F(u, λ) = λu − c·u³.
type Pitchfork struct {
	Cubic float64
}

func NewPitchfork() *Pitchfork { return &Pitchfork{Cubic: 1} }

func (p *Pitchfork) Dim() int { return 1 }

func (p *Pitchfork) Residual(u dynamo.State, lambda float64) dynamo.State {
	x := u[0]
	return dynamo.State{lambda*x - p.Cubic*x*x*x}
}

func (p *Pitchfork) Jacobian(u dynamo.State, lambda float64) mat.Matrix {
	x := u[0]
	return mat.NewDense(1, 1, []float64{lambda - 3*p.Cubic*x*x})
}

func (p *Pitchfork) ParameterDerivative(u dynamo.State, _ float64) dynamo.State {
	return dynamo.State{u[0]}
}

func (p *Pitchfork) GetParams() map[string]float64 {
	return map[string]float64{"cubic": p.Cubic}
}

func (p *Pitchfork) SetParam(name string, value float64) error {
	if name != "cubic" {
		return unknownParam("pitchfork", name)
	}
	p.Cubic = value
	return nil
}

// Transcritical is the scalar normal form F(u, λ) = λu − c·u².
type Transcritical struct {
	Quadratic float64
}

func NewTranscritical() *Transcritical { return &Transcritical{Quadratic: 1} }

func (t *Transcritical) Dim() int { return 1 }

func (t *Transcritical) Residual(u dynamo.State, lambda float64) dynamo.State {
	x := u[0]
	return dynamo.State{lambda*x - t.Quadratic*x*x}
}

func (t *Transcritical) Jacobian(u dynamo.State, lambda float64) mat.Matrix {
	return mat.NewDense(1, 1, []float64{lambda - 2*t.Quadratic*u[0]})
}

func (t *Transcritical) ParameterDerivative(u dynamo.State, _ float64) dynamo.State {
	return dynamo.State{u[0]}
}

func (t *Transcritical) GetParams() map[string]float64 {
	return map[string]float64{"quadratic": t.Quadratic}
}

func (t *Transcritical) SetParam(name string, value float64) error {
	if name != "quadratic" {
		return unknownParam("transcritical", name)
	}
	t.Quadratic = value
	return nil
}
