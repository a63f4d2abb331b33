package bifurcation

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/contsim/internal/dynamo"
	"github.com/san-kum/contsim/internal/linalg"
)

type testFunction struct {
	name string
	eval func(e *evaluation) (float64, error)
}

// Ordered by priority when several tests change sign in the same step.
var testFunctions = []testFunction{
	{dynamo.TestFold, func(e *evaluation) (float64, error) {
		return e.t.Lambda(), nil
	}},
	{dynamo.TestBordered, func(e *evaluation) (float64, error) {
		return signedRcond(e.bordered(), e.condLimit)
	}},
	{dynamo.TestEigenvalue, func(e *evaluation) (float64, error) {
		spec, err := e.spectrum()
		if err != nil {
			return 0, err
		}
		if len(spec) == 0 {
			return 0, errors.New("empty spectrum")
		}
		return real(spec[0].Value), nil
	}},
	{dynamo.TestDeterminant, func(e *evaluation) (float64, error) {
		return signedRcond(e.jac, e.condLimit)
	}},
}

func priority(name string) int {
	for i, tf := range testFunctions {
		if tf.name == name {
			return i
		}
	}
	return len(testFunctions)
}

// condLimiter is implemented by backends that reject operators above a
// condition number.
type condLimiter interface {
	Limit() float64
}

// evaluation caches the derivatives and spectrum at one point.
type evaluation struct {
	backend   dynamo.EigenSolver
	weight    float64
	condLimit float64
	x, t      dynamo.Extended
	jac       mat.Matrix
	dlam      dynamo.State

	spec    []dynamo.Eigenpair
	specErr error
	specOK  bool
}

func newEvaluation(prob dynamo.Problem, backend dynamo.EigenSolver, w float64, x, t dynamo.Extended) *evaluation {
	u, lambda := x.U(), x.Lambda()
	limit := linalg.DefaultCondLimit
	if l, ok := backend.(condLimiter); ok && l.Limit() > 0 {
		limit = l.Limit()
	}
	return &evaluation{
		backend:   backend,
		weight:    w,
		condLimit: limit,
		x:         x,
		t:         t,
		jac:       prob.Jacobian(u, lambda),
		dlam:      prob.ParameterDerivative(u, lambda),
	}
}

func (e *evaluation) bordered() *mat.Dense {
	return linalg.Bordered(e.jac, e.dlam, e.t.Row(e.weight))
}

func (e *evaluation) spectrum() ([]dynamo.Eigenpair, error) {
	if !e.specOK {
		e.spec, e.specErr = e.backend.LeadingEigenpairs(e.jac, 0)
		e.specOK = true
	}
	return e.spec, e.specErr
}

// signedRcond returns sign(det a)·σ_min/σ_max. Unlike the determinant it
// stays representable for large operators and vanishes linearly at a simple
// singularity. Above the condition limit the sign of the determinant is
// rounding noise, so the value is reported as zero and carries no sign.
func signedRcond(a mat.Matrix, limit float64) (float64, error) {
	var lu mat.LU
	lu.Factorize(a)
	if cond := lu.Cond(); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > limit {
		return 0, nil
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDNone); !ok {
		return 0, errors.New("svd: decomposition failed")
	}
	values := svd.Values(nil)
	if len(values) == 0 || values[0] == 0 {
		return 0, nil
	}
	_, sign := lu.LogDet()
	rc := values[len(values)-1] / values[0]
	if sign < 0 {
		rc = -rc
	}
	if math.IsNaN(rc) {
		return 0, errors.New("test function is not finite")
	}
	return rc, nil
}
