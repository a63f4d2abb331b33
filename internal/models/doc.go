// Package models provides parameterized steady-state problems F(u, λ) = 0
// for continuation.
//
// Every model implements [dynamo.Problem]:
//
//   - [Pitchfork]: λu − u³, symmetric branch point at the origin
//   - [Transcritical]: λu − u², exchange of stability at the origin
//   - [Bratu]: finite-difference discretization of u'' + λeᵘ = 0 with a fold
//   - [Hopf]: planar Hopf normal form
//   - [Lorenz]: Lorenz equilibria in ρ, branch point at ρ = 1 and Hopf on
//     the convecting branches
//
// Models that only provide a residual, such as [Duffing], are wrapped with
// [FiniteDifference] to obtain their derivatives numerically:
//
//	prob := models.NewFiniteDifference(models.NewDuffing())
//
// Most models also implement [dynamo.Configurable] so their fixed
// parameters can be set by name from configuration files.
package models
