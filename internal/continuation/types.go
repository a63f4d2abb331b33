package continuation

import (
	"github.com/san-kum/contsim/internal/bifurcation"
	"github.com/san-kum/contsim/internal/dynamo"
)

// Rejection records a failed correction.
type Rejection struct {
	Step       int     `json:"step"`
	Ds         float64 `json:"ds"`
	Iterations int     `json:"iterations"`
	// Residual is -1 when the failure left no finite residual.
	Residual   float64 `json:"residual"`
	Error      string  `json:"error"`

	Err error `json:"-"`
}

// Seed starts a new branch at a copy of a critical point.
type Seed struct {
	X         dynamo.Extended    `json:"x"`
	Tangent   dynamo.Extended    `json:"tangent"`
	Parent    string             `json:"parent"`
	Depth     int                `json:"depth"`
	Arclength float64            `json:"arclength"`
	Origin    bifurcation.Record `json:"origin"`
}

// Result is the history of one branch.
type Result struct {
	ID           string               `json:"id"`
	Parent       string               `json:"parent,omitempty"`
	Depth        int                  `json:"depth"`
	Points       []dynamo.Point       `json:"points"`
	Bifurcations []bifurcation.Record `json:"bifurcations"`
	Rejections   []Rejection          `json:"rejections"`
	Seeds        []Seed               `json:"seeds,omitempty"`
	Reason       Reason               `json:"reason"`
	Error        string               `json:"error,omitempty"`

	// SwitchErrors holds branch points for which no new branch could be
	// started.
	SwitchErrors []error `json:"-"`
	Err          error   `json:"-"`
}

// Observer is notified of branch progress. Implementations must be safe for
// concurrent use when a Tracer runs branches in parallel.
type Observer interface {
	OnPoint(branch string, p dynamo.Point)
	OnRejection(branch string, r Rejection)
	OnBifurcation(branch string, r bifurcation.Record)
	OnHalt(branch string, res *Result)
}
