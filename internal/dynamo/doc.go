// Package dynamo provides core primitives for numerical continuation of
// parameterized nonlinear equations F(u, λ) = 0.
//
// The package defines the fundamental interfaces and types shared by the
// continuation engine:
//
//   - [State]: vector of unknowns u
//   - [Extended]: augmented vector (u, λ) with the parameter stored last
//   - [Point]: an accepted point on a branch with its tangent and diagnostics
//   - [Problem]: residual and Jacobian provider for the user's equation
//   - [LinearSolver], [EigenSolver]: linear algebra backends
//   - [Config]: continuation parameters
//
// # Example
//
//	prob := models.NewBratu(20)
//	backend := linalg.NewDense()
//	d, _ := continuation.NewDriver(prob, backend, dynamo.DefaultConfig())
//	if err := d.Start(ctx, make(dynamo.State, prob.Dim()), 0); err != nil {
//		return err
//	}
//	res, err := d.Run(ctx, continuation.MaxSteps(200))
//
// # Thread Safety
//
// Problems and backends are shared by every branch of a trace and must be
// safe for concurrent calls. Everything else (drivers, histories, tangents)
// is owned by a single branch.
package dynamo
