package bifurcation

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/contsim/internal/dynamo"
	"github.com/san-kum/contsim/internal/newton"
)

// Corrector solves the augmented system for a request.
type Corrector interface {
	Correct(ctx context.Context, req newton.Request) (newton.Result, error)
}

// Tangenter computes the unit tangent at x oriented along prev.
type Tangenter interface {
	Tangent(x, prev dynamo.Extended) (dynamo.Extended, error)
}

// Sample holds the diagnostics of one point.
type Sample struct {
	Tests map[string]float64
	// Unstable is -1 when the spectrum was not computed.
	Unstable int
}

// Event is a sign change of at least one test function between two
// accepted points.
type Event struct {
	Test    string
	Changed []string
	Left    dynamo.Point
	Right   dynamo.Point
}

type last struct {
	value float64
	point dynamo.Point
}

// Monitor tracks test functions along a single branch. It is not safe for
// concurrent use.
type Monitor struct {
	prob    dynamo.Problem
	backend dynamo.Backend
	corr    Corrector
	tan     Tangenter
	cfg     dynamo.BifurcationConfig
	weight  float64
	tests   []testFunction
	spectra bool

	last map[string]last
}

func NewMonitor(prob dynamo.Problem, backend dynamo.Backend, corr Corrector, tan Tangenter, cfg dynamo.Config) *Monitor {
	m := &Monitor{
		prob:    prob,
		backend: backend,
		corr:    corr,
		tan:     tan,
		cfg:     cfg.Bifurcation,
		weight:  cfg.Weight,
		last:    make(map[string]last),
	}
	for _, tf := range testFunctions {
		if cfg.HasTest(tf.name) {
			m.tests = append(m.tests, tf)
		}
	}
	m.spectra = cfg.HasTest(dynamo.TestEigenvalue)
	return m
}

// Tests returns the names of the enabled test functions in priority order.
func (m *Monitor) Tests() []string {
	names := make([]string, len(m.tests))
	for i, tf := range m.tests {
		names[i] = tf.name
	}
	return names
}

// Evaluate computes every enabled test function at (x, t).
func (m *Monitor) Evaluate(x, t dynamo.Extended) (Sample, error) {
	e := newEvaluation(m.prob, m.backend, m.weight, x, t)
	s := Sample{Tests: make(map[string]float64, len(m.tests)), Unstable: -1}
	for _, tf := range m.tests {
		v, err := tf.eval(e)
		if err != nil {
			return s, errors.Wrapf(err, "test function %s", tf.name)
		}
		s.Tests[tf.name] = v
	}
	if m.spectra {
		spec, err := e.spectrum()
		if err != nil {
			return s, errors.Wrap(err, "stability")
		}
		s.Unstable = 0
		for _, p := range spec {
			if real(p.Value) > m.cfg.ZeroTolerance {
				s.Unstable++
			}
		}
	}
	return s, nil
}

func (m *Monitor) significant(v float64) bool {
	return math.Abs(v) > m.cfg.ZeroTolerance && !math.IsNaN(v)
}

// Observe records an accepted point whose Tests are filled in and reports
// a sign change against the last significant value of each test. Values
// within the zero tolerance neither open nor close a bracket.
func (m *Monitor) Observe(p dynamo.Point) *Event {
	var ev *Event
	for _, tf := range m.tests {
		v, ok := p.Tests[tf.name]
		if !ok || !m.significant(v) {
			continue
		}
		prev, seen := m.last[tf.name]
		if seen && prev.value*v < 0 {
			if ev == nil {
				ev = &Event{Test: tf.name, Left: prev.point, Right: p}
			}
			ev.Changed = append(ev.Changed, tf.name)
		}
		m.last[tf.name] = last{value: v, point: p}
	}
	return ev
}

// Reset forgets all previous test values.
func (m *Monitor) Reset() {
	m.last = make(map[string]last)
}
