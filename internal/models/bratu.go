package models

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/contsim/internal/dynamo"
)

// Bratu is the one-dimensional Bratu problem u'' + λeᵘ = 0 on (0, 1) with
// homogeneous Dirichlet boundaries, discretized by second-order central
// differences on N interior nodes. The continuous problem folds at
// λ ≈ 3.5138.
type Bratu struct {
	N int
}

func NewBratu(n int) *Bratu {
	if n < 1 {
		n = 1
	}
	return &Bratu{N: n}
}

func (b *Bratu) Dim() int { return b.N }

func (b *Bratu) h2() float64 {
	h := 1.0 / float64(b.N+1)
	return h * h
}

func (b *Bratu) Residual(u dynamo.State, lambda float64) dynamo.State {
	n := b.N
	h2 := b.h2()
	f := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		left, right := 0.0, 0.0
		if i > 0 {
			left = u[i-1]
		}
		if i < n-1 {
			right = u[i+1]
		}
		f[i] = (left-2*u[i]+right)/h2 + lambda*math.Exp(u[i])
	}
	return f
}

func (b *Bratu) Jacobian(u dynamo.State, lambda float64) mat.Matrix {
	n := b.N
	h2 := b.h2()
	j := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		j.Set(i, i, -2/h2+lambda*math.Exp(u[i]))
		if i > 0 {
			j.Set(i, i-1, 1/h2)
		}
		if i < n-1 {
			j.Set(i, i+1, 1/h2)
		}
	}
	return j
}

func (b *Bratu) ParameterDerivative(u dynamo.State, _ float64) dynamo.State {
	d := make(dynamo.State, len(u))
	for i, v := range u {
		d[i] = math.Exp(v)
	}
	return d
}

// Mesh returns the interior node coordinates.
func (b *Bratu) Mesh() []float64 {
	x := make([]float64, b.N)
	for i := range x {
		x[i] = float64(i+1) / float64(b.N+1)
	}
	return x
}
