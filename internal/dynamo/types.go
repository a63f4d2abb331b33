package dynamo

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Dot(other State) float64 {
	sum := 0.0
	for i := range s {
		if i < len(other) {
			sum += s[i] * other[i]
		}
	}
	return sum
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// Axpy returns s + a*x.
func (s State) Axpy(a float64, x State) State {
	result := s.Clone()
	for i := range result {
		if i < len(x) {
			result[i] += a * x[i]
		}
	}
	return result
}

// Extended is the augmented unknown (u, λ). The parameter is stored as the
// last component so the whole vector can be handed to linear algebra routines.
type Extended []float64

func NewExtended(u State, lambda float64) Extended {
	x := make(Extended, len(u)+1)
	copy(x, u)
	x[len(u)] = lambda
	return x
}

// Dim is the dimension n of the unknown u.
func (x Extended) Dim() int { return len(x) - 1 }

// U returns a view of the unknown part. Callers must not modify it.
func (x Extended) U() State { return State(x[:len(x)-1]) }

func (x Extended) Lambda() float64 { return x[len(x)-1] }

func (x Extended) Clone() Extended {
	c := make(Extended, len(x))
	copy(c, x)
	return c
}

func (x Extended) IsValid() bool { return State(x).IsValid() }

func (x Extended) Add(other Extended) Extended { return Extended(State(x).Add(State(other))) }

func (x Extended) Sub(other Extended) Extended { return Extended(State(x).Sub(State(other))) }

func (x Extended) Scale(f float64) Extended { return Extended(State(x).Scale(f)) }

func (x Extended) Axpy(a float64, d Extended) Extended {
	return Extended(State(x).Axpy(a, State(d)))
}

// WDot is the weighted inner product used by the arclength constraint:
// w·⟨u, u'⟩ + (1−w)·λλ'.
func (x Extended) WDot(other Extended, w float64) float64 {
	n := x.Dim()
	return w*State(x[:n]).Dot(State(other[:n])) + (1-w)*x[n]*other[n]
}

func (x Extended) WNorm(w float64) float64 {
	return math.Sqrt(math.Abs(x.WDot(x, w)))
}

// Normalize scales x to unit weighted norm.
func (x Extended) Normalize(w float64) (Extended, error) {
	nrm := x.WNorm(w)
	if nrm == 0 || math.IsNaN(nrm) || math.IsInf(nrm, 0) {
		return nil, ErrDegenerateVector
	}
	return x.Scale(1 / nrm), nil
}

// Row returns the weighted tangent row [w·δu, (1−w)·δλ] that borders the
// Jacobian in the augmented system.
func (x Extended) Row(w float64) []float64 {
	n := x.Dim()
	row := make([]float64, len(x))
	for i := 0; i < n; i++ {
		row[i] = w * x[i]
	}
	row[n] = (1 - w) * x[n]
	return row
}

// Point is an accepted point on a branch.
type Point struct {
	X          Extended           `json:"x"`
	Arclength  float64            `json:"arclength"`
	Tangent    Extended           `json:"tangent"`
	Tests      map[string]float64 `json:"tests,omitempty"`
	Step       float64            `json:"step"`
	Iterations int                `json:"iterations"`
	Residual   float64            `json:"residual"`
	// Unstable counts eigenvalues of ∂F/∂u with positive real part; -1 when
	// the spectrum was not computed.
	Unstable int `json:"unstable"`
}

func (p Point) Lambda() float64 { return p.X.Lambda() }

// Norm is the L2 norm of the unknown, the usual ordinate of a branch diagram.
func (p Point) Norm() float64 { return p.X.U().Norm() }

// Stable reports whether the point is linearly stable. The second result is
// false when stability is unknown.
func (p Point) Stable() (bool, bool) {
	if p.Unstable < 0 {
		return false, false
	}
	return p.Unstable == 0, true
}

func (p Point) String() string {
	return fmt.Sprintf("s=%.4f λ=%.6g |u|=%.6g", p.Arclength, p.Lambda(), p.Norm())
}
