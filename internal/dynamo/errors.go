package dynamo

import (
	"fmt"

	"github.com/pkg/errors"
)

// Domain errors for continuation operations.
var (
	// ErrConvergence indicates the Newton corrector did not converge within
	// its iteration cap. Recoverable: the driver shrinks the step and retries.
	ErrConvergence = errors.New("dynamo: newton corrector did not converge")

	// ErrStepSizeExhausted indicates the step size fell below the configured
	// minimum after repeated failures. Fatal for the branch only.
	ErrStepSizeExhausted = errors.New("dynamo: step size below minimum")

	// ErrLocalization indicates bifurcation localization hit its iteration cap.
	ErrLocalization = errors.New("dynamo: bifurcation localization did not converge")

	// ErrNoTransverseDirection indicates a numerically degenerate nullspace
	// at a branch point, so no new branch can be started.
	ErrNoTransverseDirection = errors.New("dynamo: no transverse direction at branch point")

	// ErrSingularSystem indicates the linear solve backend could not invert
	// the operator to working precision.
	ErrSingularSystem = errors.New("dynamo: singular linear system")

	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched vector or operator dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and problem")

	// ErrDegenerateVector indicates a vector with zero norm where a direction
	// was required.
	ErrDegenerateVector = errors.New("dynamo: vector has zero norm")

	// ErrInvalidConfig indicates continuation parameters out of range.
	ErrInvalidConfig = errors.New("dynamo: invalid continuation parameters")
)

// ConvergenceError reports a failed Newton correction. It matches
// ErrConvergence and, when present, its Cause under errors.Is.
type ConvergenceError struct {
	Iterations int
	Residual   float64
	Cause      error
}

func (e *ConvergenceError) Error() string {
	msg := fmt.Sprintf("newton: no convergence after %d iterations (residual %.3e)", e.Iterations, e.Residual)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConvergenceError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrConvergence}
	}
	return []error{ErrConvergence, e.Cause}
}

// StepError wraps an error with the branch position where it happened.
type StepError struct {
	Step      int
	Arclength float64
	Lambda    float64
	Wrapped   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (s=%.4f, λ=%.6g): %v", e.Step, e.Arclength, e.Lambda, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
