package continuation

import "github.com/san-kum/contsim/internal/dynamo"

// Terminator decides after each accepted point whether the branch is done.
// steps is the number of accepted steps, not counting the starting point.
type Terminator func(p dynamo.Point, steps int) (Reason, bool)

func MaxSteps(n int) Terminator {
	return func(_ dynamo.Point, steps int) (Reason, bool) {
		return ReasonMaxSteps, steps >= n
	}
}

func MaxArclength(s float64) Terminator {
	return func(p dynamo.Point, _ int) (Reason, bool) {
		return ReasonMaxArclength, p.Arclength >= s
	}
}

// ParameterBounds stops once λ leaves [lo, hi].
func ParameterBounds(lo, hi float64) Terminator {
	return func(p dynamo.Point, _ int) (Reason, bool) {
		l := p.Lambda()
		return ReasonParameterBound, l < lo || l > hi
	}
}

// Any stops at the first terminator that fires.
func Any(ts ...Terminator) Terminator {
	return func(p dynamo.Point, steps int) (Reason, bool) {
		for _, t := range ts {
			if t == nil {
				continue
			}
			if r, ok := t(p, steps); ok {
				return r, true
			}
		}
		return ReasonNone, false
	}
}
