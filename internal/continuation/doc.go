// Package continuation traces solution branches of F(u, λ) = 0 by
// pseudo-arclength continuation.
//
// A [Driver] owns one branch and advances it through an explicit state
// machine:
//
//	Idle → Predicting → Correcting → Accepted → Monitoring → Continuing → Predicting …
//	                               ↘ Rejected → Predicting | Halted
//	                                            Monitoring → Switching → Continuing
//	                                                         Continuing → Halted
//
// Each call to [Driver.Step] performs exactly one transition, so callers
// can interleave stepping with rendering or cancellation. [Driver.Run]
// steps until the branch halts.
//
// A [Tracer] grows a tree of branches: every branch point found on a
// branch yields [Seed]s, and each seed is traced by its own Driver.
// Sibling branches share nothing but the problem and the backend and may be
// traced concurrently.
package continuation
