package linalg

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/contsim/internal/dynamo"
)

// DefaultCondLimit is the condition number above which an operator is
// reported singular.
const DefaultCondLimit = 1e14

// Dense is a dynamo.Backend on dense gonum matrices.
type Dense struct {
	CondLimit float64
}

func NewDense() *Dense {
	return &Dense{CondLimit: DefaultCondLimit}
}

func (d *Dense) Name() string { return "dense" }

func (d *Dense) Solve(a mat.Matrix, b []float64) ([]float64, error) {
	r, c := a.Dims()
	if r != c || r != len(b) {
		return nil, errors.Wrapf(dynamo.ErrDimensionMismatch, "solve: operator %dx%d, rhs %d", r, c, len(b))
	}

	var lu mat.LU
	lu.Factorize(a)
	cond := lu.Cond()
	if math.IsInf(cond, 0) || math.IsNaN(cond) || cond > d.Limit() {
		return nil, errors.Wrapf(dynamo.ErrSingularSystem, "condition number %.3e", cond)
	}

	x := mat.NewVecDense(r, nil)
	if err := lu.SolveVecTo(x, false, mat.NewVecDense(r, append([]float64(nil), b...))); err != nil {
		return nil, errors.Wrap(dynamo.ErrSingularSystem, err.Error())
	}

	out := x.RawVector().Data
	if !dynamo.State(out).IsValid() {
		return nil, errors.Wrap(dynamo.ErrSingularSystem, "solution is not finite")
	}
	return out, nil
}

// Limit is the effective condition number limit.
func (d *Dense) Limit() float64 {
	if d.CondLimit <= 0 {
		return DefaultCondLimit
	}
	return d.CondLimit
}

func (d *Dense) LeadingEigenpairs(a mat.Matrix, k int) ([]dynamo.Eigenpair, error) {
	r, c := a.Dims()
	if r != c {
		return nil, errors.Wrapf(dynamo.ErrDimensionMismatch, "eigen: operator %dx%d not square", r, c)
	}
	if r == 0 {
		return nil, nil
	}

	var eig mat.Eigen
	if ok := eig.Factorize(a, mat.EigenRight); !ok {
		return nil, errors.New("eigen: decomposition failed")
	}
	values := eig.Values(nil)
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		vi, vj := values[order[i]], values[order[j]]
		if real(vi) != real(vj) {
			return real(vi) > real(vj)
		}
		return imag(vi) > imag(vj)
	})

	if k <= 0 || k > len(order) {
		k = len(order)
	}
	pairs := make([]dynamo.Eigenpair, k)
	for i := 0; i < k; i++ {
		col := order[i]
		v := make([]complex128, r)
		for row := 0; row < r; row++ {
			v[row] = vecs.At(row, col)
		}
		pairs[i] = dynamo.Eigenpair{Value: values[col], Vector: v}
	}
	return pairs, nil
}

// Nullspace returns the right singular vectors whose singular values are at
// most tol times the largest one. Columns beyond the row count of a wide
// operator always belong to the nullspace.
func (d *Dense) Nullspace(a mat.Matrix, tol float64) ([][]float64, error) {
	_, c := a.Dims()
	if c == 0 {
		return nil, nil
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFullV); !ok {
		return nil, errors.New("svd: decomposition failed")
	}
	values := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)

	smax := 0.0
	if len(values) > 0 {
		smax = values[0]
	}

	var basis [][]float64
	for j := 0; j < c; j++ {
		if j < len(values) && smax > 0 && values[j] > tol*smax {
			continue
		}
		basis = append(basis, mat.Col(nil, j, &v))
	}
	return basis, nil
}

// Stacked returns the n×(n+1) matrix [∂F/∂u  ∂F/∂λ].
func Stacked(jac mat.Matrix, dlam []float64) *mat.Dense {
	n, _ := jac.Dims()
	m := mat.NewDense(n, n+1, nil)
	m.Slice(0, n, 0, n).(*mat.Dense).Copy(jac)
	m.SetCol(n, dlam)
	return m
}

// Bordered returns the (n+1)×(n+1) augmented Jacobian [[∂F/∂u, ∂F/∂λ], [row]].
func Bordered(jac mat.Matrix, dlam []float64, row []float64) *mat.Dense {
	n, _ := jac.Dims()
	m := mat.NewDense(n+1, n+1, nil)
	m.Slice(0, n, 0, n).(*mat.Dense).Copy(jac)
	for i := 0; i < n; i++ {
		m.Set(i, n, dlam[i])
	}
	m.SetRow(n, row)
	return m
}
