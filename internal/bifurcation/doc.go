// Package bifurcation detects, localizes and classifies bifurcations along a
// continuation branch.
//
// A [Monitor] evaluates a set of scalar test functions at every accepted
// point. A sign change between the last significant value of a test and the
// current one opens a bracket, which [Monitor.Localize] narrows with
// Illinois false position in the pseudo-arclength from the bracket's left
// end. Each narrowing step is a full corrector solve, so every candidate
// lies on the branch.
//
// Test functions:
//
//	fold         λ-component of the unit tangent
//	bordered     signed reciprocal condition number of the bordered Jacobian
//	eigenvalue   real part of the rightmost eigenvalue of ∂F/∂u
//	determinant  signed reciprocal condition number of ∂F/∂u
//
// The bordered test changes sign at branch points but not at folds, which
// separates the two without inspecting the spectrum.
package bifurcation
