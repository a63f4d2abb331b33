// Package stepsize adapts the continuation step length to the Newton
// corrector's effort.
package stepsize

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/contsim/internal/dynamo"
)

// Outcome summarizes one correction.
type Outcome struct {
	Converged  bool
	Iterations int
}

type Controller struct {
	min, max           float64
	target             int
	minScale, maxScale float64
}

func New(cfg dynamo.StepConfig) *Controller {
	return &Controller{
		min:      cfg.Min,
		max:      cfg.Max,
		target:   cfg.Target,
		minScale: cfg.MinScale,
		maxScale: cfg.MaxScale,
	}
}

// Next returns the step to use after a correction with step ds. A converged
// step is rescaled by target/iterations within [minScale, maxScale]; a
// failed step is halved. Halving below the minimum step returns
// dynamo.ErrStepSizeExhausted together with the halved value.
func (c *Controller) Next(ds float64, out Outcome) (float64, error) {
	if !out.Converged {
		next := ds / 2
		if next < c.min {
			return next, errors.Wrapf(dynamo.ErrStepSizeExhausted, "step %.3e below minimum %.3e", next, c.min)
		}
		return next, nil
	}

	it := out.Iterations
	if it < 1 {
		it = 1
	}
	scale := float64(c.target) / float64(it)
	scale = math.Max(c.minScale, math.Min(c.maxScale, scale))
	return c.Clamp(ds * scale), nil
}

// Clamp limits ds to the configured range.
func (c *Controller) Clamp(ds float64) float64 {
	return math.Max(c.min, math.Min(c.max, ds))
}
