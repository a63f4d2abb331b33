package bifurcation

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/contsim/internal/dynamo"
	"github.com/san-kum/contsim/internal/newton"
)

// Localize narrows the bracket of ev to the zero of its test function and
// classifies the result. The returned record always describes the best
// estimate; when the iteration cap is hit or a correction fails it is
// Unclassified with Localized false and Err wrapping dynamo.ErrLocalization.
func (m *Monitor) Localize(ctx context.Context, ev *Event) Record {
	left, right := ev.Left, ev.Right
	xl, tl := left.X, left.Tangent
	dx := right.X.Sub(xl)

	sb := tl.WDot(dx, m.weight)
	if sb <= 0 {
		sb = dx.WNorm(m.weight)
	}

	rec := Record{
		Test:      ev.Test,
		Changed:   append([]string(nil), ev.Changed...),
		X:         right.X.Clone(),
		Tangent:   right.Tangent.Clone(),
		Arclength: right.Arclength,
		Value:     math.Abs(right.Tests[ev.Test]),
	}
	if left.Unstable >= 0 && right.Unstable >= 0 {
		rec.Crossed = right.Unstable - left.Unstable
	}

	tf := m.lookup(ev.Test)
	a, b := 0.0, sb
	fa, fb := left.Tests[ev.Test], right.Tests[ev.Test]
	side := 0

	fail := func(cause error) Record {
		rec.Kind = Unclassified
		rec.Localized = false
		rec.Err = errors.Wrapf(dynamo.ErrLocalization, "%s test near λ=%.6g: %v", ev.Test, rec.Lambda(), cause)
		rec.Error = rec.Err.Error()
		return rec
	}

	for it := 1; it <= m.cfg.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		rec.Iterations = it

		sigma := (a*fb - b*fa) / (fb - fa)
		margin := 1e-3 * (b - a)
		if math.IsNaN(sigma) || sigma <= a+margin || sigma >= b-margin {
			sigma = 0.5 * (a + b)
		}

		guess := xl.Axpy(sigma/sb, dx)
		res, err := m.corr.Correct(ctx, newton.Request{Anchor: xl, Tangent: tl, Ds: sigma, Guess: guess})
		if err != nil {
			return fail(err)
		}
		t, err := m.tan.Tangent(res.X, tl)
		if err != nil {
			t = tl.Clone()
		}
		phi, err := tf.eval(newEvaluation(m.prob, m.backend, m.weight, res.X, t))
		if err != nil {
			return fail(err)
		}

		rec.X, rec.Tangent = res.X, t
		rec.Arclength = left.Arclength + sigma
		rec.Value = math.Abs(phi)

		if math.Abs(phi) < m.cfg.Tolerance {
			break
		}
		if phi*fa > 0 {
			a, fa = sigma, phi
			if side == -1 {
				fb /= 2
			}
			side = -1
		} else {
			b, fb = sigma, phi
			if side == 1 {
				fa /= 2
			}
			side = 1
		}
		if b-a < m.cfg.MinBracket {
			break
		}
		if it == m.cfg.MaxIterations {
			return fail(errors.Errorf("no convergence after %d iterations (|φ|=%.3e)", it, rec.Value))
		}
	}

	rec.Localized = true
	m.classify(&rec)
	return rec
}

func (m *Monitor) lookup(name string) testFunction {
	for _, tf := range testFunctions {
		if tf.name == name {
			return tf
		}
	}
	return testFunctions[0]
}
