package metrics

import (
	"math"

	"github.com/san-kum/contsim/internal/dynamo"
)

// Summary aggregates the points of one branch.
type Summary struct {
	Points         int
	Arclength      float64
	LambdaMin      float64
	LambdaMax      float64
	MeanIterations float64
	MaxResidual    float64
	// Stability is the fraction of points with known stability that are
	// stable; NaN when no point carries a spectrum.
	Stability float64
}

func Summarize(points []dynamo.Point) Summary {
	s := Summary{
		Points:    len(points),
		LambdaMin: math.Inf(1),
		LambdaMax: math.Inf(-1),
		Stability: math.NaN(),
	}
	if len(points) == 0 {
		s.LambdaMin, s.LambdaMax = 0, 0
		return s
	}

	var iters, known, stable int
	for _, p := range points {
		l := p.Lambda()
		s.LambdaMin = math.Min(s.LambdaMin, l)
		s.LambdaMax = math.Max(s.LambdaMax, l)
		s.MaxResidual = math.Max(s.MaxResidual, p.Residual)
		iters += p.Iterations
		if ok, valid := p.Stable(); valid {
			known++
			if ok {
				stable++
			}
		}
	}
	s.Arclength = points[len(points)-1].Arclength - points[0].Arclength
	s.MeanIterations = float64(iters) / float64(len(points))
	if known > 0 {
		s.Stability = float64(stable) / float64(known)
	}
	return s
}
