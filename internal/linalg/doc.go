// Package linalg provides the dense linear algebra backend used by the
// continuation engine.
//
// The backend is built on gonum's LAPACK-backed factorizations:
//
//   - Solve: LU factorization with a condition number guard
//   - LeadingEigenpairs: general (non-symmetric) eigen decomposition
//   - Nullspace: full SVD, right singular vectors of small singular values
//
// Helpers assemble the augmented operators of pseudo-arclength
// continuation from ∂F/∂u, ∂F/∂λ and a tangent row:
//
//	b := linalg.Bordered(jac, dlam, tangent.Row(w))
//	dx, err := backend.Solve(b, rhs)
//
// Dense is stateless and safe for concurrent use.
package linalg
