package dynamo

import "gonum.org/v1/gonum/mat"

// Problem supplies the residual F(u, λ) and its derivatives. Implementations
// must be deterministic and free of hidden state, since several branches may
// evaluate the same problem concurrently.
type Problem interface {
	Dim() int
	Residual(u State, lambda float64) State
	// Jacobian returns ∂F/∂u as an n×n operator.
	Jacobian(u State, lambda float64) mat.Matrix
	// ParameterDerivative returns ∂F/∂λ.
	ParameterDerivative(u State, lambda float64) State
}

// Configurable problems expose named parameters other than the continuation
// parameter.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// LinearSolver solves a·x = b. It returns ErrSingularSystem (possibly
// wrapped) when a is not invertible to working precision.
type LinearSolver interface {
	Solve(a mat.Matrix, b []float64) ([]float64, error)
}

// Eigenpair is an eigenvalue with its right eigenvector.
type Eigenpair struct {
	Value  complex128
	Vector []complex128
}

// EigenSolver computes spectra and nullspaces.
type EigenSolver interface {
	// LeadingEigenpairs returns up to k eigenpairs ordered by descending
	// real part. k <= 0 requests the full spectrum.
	LeadingEigenpairs(a mat.Matrix, k int) ([]Eigenpair, error)
	// Nullspace returns an orthonormal basis of the numerical nullspace,
	// counting singular values at or below tol relative to the largest.
	Nullspace(a mat.Matrix, tol float64) ([][]float64, error)
}

// Backend bundles the linear algebra collaborators.
type Backend interface {
	LinearSolver
	EigenSolver
}
