package bifurcation

import (
	"math"

	"github.com/san-kum/contsim/internal/dynamo"
	"github.com/san-kum/contsim/internal/linalg"
)

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// classify inspects the localized point. Inconclusive evidence leaves the
// record Unclassified.
func (m *Monitor) classify(rec *Record) {
	e := newEvaluation(m.prob, m.backend, m.weight, rec.X, rec.Tangent)

	if spec, err := e.spectrum(); err == nil {
		k := len(spec)
		if m.cfg.NumEigenvalues > 0 && m.cfg.NumEigenvalues < k {
			k = m.cfg.NumEigenvalues
		}
		rec.Spectrum = make([]Eigenvalue, k)
		for i := 0; i < k; i++ {
			rec.Spectrum[i] = Eigenvalue{Re: real(spec[i].Value), Im: imag(spec[i].Value)}
		}
	}

	switch {
	case contains(rec.Changed, dynamo.TestFold):
		rec.Kind = Fold
		return
	case contains(rec.Changed, dynamo.TestBordered):
		rec.Kind = BranchPoint
		return
	}

	if spec, err := e.spectrum(); err == nil && len(spec) > 0 {
		critical := spec[0].Value
		for _, p := range spec[1:] {
			if math.Abs(real(p.Value)) < math.Abs(real(critical)) {
				critical = p.Value
			}
		}
		if math.Abs(imag(critical)) > m.cfg.ZeroTolerance {
			rec.Kind = Hopf
			return
		}
	}

	if basis, err := m.backend.Nullspace(linalg.Bordered(e.jac, e.dlam, rec.Tangent.Row(m.weight)), m.cfg.Nullspace); err == nil && len(basis) > 0 {
		rec.Kind = BranchPoint
		return
	}

	if math.Abs(rec.Tangent.Lambda()) < m.cfg.Nullspace {
		rec.Kind = Fold
		return
	}

	rec.Kind = Unclassified
}
