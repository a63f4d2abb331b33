package predictor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/contsim/internal/dynamo"
	"github.com/san-kum/contsim/internal/linalg"
	"github.com/san-kum/contsim/internal/models"
)

type singularBackend struct {
	*linalg.Dense
}

func (singularBackend) Solve(mat.Matrix, []float64) ([]float64, error) {
	return nil, dynamo.ErrSingularSystem
}

func newPredictor(prob dynamo.Problem, mutate func(*dynamo.Config)) *Predictor {
	cfg := dynamo.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(prob, linalg.NewDense(), cfg)
}

func TestInitialTangent(t *testing.T) {
	tests := []struct {
		name      string
		direction float64
	}{
		{"increasing", 1},
		{"decreasing", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPredictor(models.NewPitchfork(), func(c *dynamo.Config) { c.Direction = tt.direction })
			x := dynamo.NewExtended(dynamo.State{1}, 1)

			tan, err := p.InitialTangent(x)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, tan.WNorm(p.Weight()), 1e-12)
			assert.Equal(t, tt.direction > 0, tan.Lambda() > 0)
			// on u² = λ, dλ = 2u·du
			assert.InDelta(t, 2*tan.U()[0], tan.Lambda(), 1e-10)
		})
	}
}

func TestInitialTangent_TrivialBranch(t *testing.T) {
	p := newPredictor(models.NewPitchfork(), nil)
	tan, err := p.InitialTangent(dynamo.NewExtended(dynamo.State{0}, -0.5))
	require.NoError(t, err)
	assert.InDelta(t, 0, tan.U()[0], 1e-12)
	assert.Greater(t, tan.Lambda(), 0.0)
}

func TestTangent_Continuity(t *testing.T) {
	p := newPredictor(models.NewPitchfork(), nil)
	w := p.Weight()

	x := dynamo.NewExtended(dynamo.State{math.Sqrt(0.8)}, 0.8)
	prev, err := dynamo.NewExtended(dynamo.State{-1}, -2).Normalize(w)
	require.NoError(t, err)

	tan, err := p.Tangent(x, prev)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, tan.WNorm(w), 1e-12)
	assert.Greater(t, tan.WDot(prev, w), 0.0)
	assert.Less(t, tan.Lambda(), 0.0)

	// flipping the reference flips the result
	flipped, err := p.Tangent(x, prev.Scale(-1))
	require.NoError(t, err)
	assert.Greater(t, flipped.Lambda(), 0.0)
}

func TestNextTangent_Fallbacks(t *testing.T) {
	cfg := dynamo.DefaultConfig()
	p := New(models.NewPitchfork(), singularBackend{linalg.NewDense()}, cfg)
	w := cfg.Weight

	prevT, _ := dynamo.NewExtended(dynamo.State{1}, 0).Normalize(w)
	prevX := dynamo.NewExtended(dynamo.State{0}, 0)
	x := dynamo.NewExtended(dynamo.State{0.1}, 0.01)

	tan, src, err := p.NextTangent(x, prevX, prevT)
	assert.ErrorIs(t, err, dynamo.ErrSingularSystem)
	assert.Equal(t, FromSecant, src)
	assert.InDelta(t, 1.0, tan.WNorm(w), 1e-12)

	tan, src, _ = p.NextTangent(x, x, prevT)
	assert.Equal(t, FromPrevious, src)
	assert.Equal(t, prevT, tan)
}

func TestPredict(t *testing.T) {
	w := dynamo.DefaultConfig().Weight
	tan, _ := dynamo.NewExtended(dynamo.State{0}, 1).Normalize(w)
	last := dynamo.Point{X: dynamo.NewExtended(dynamo.State{0}, 1), Tangent: tan}
	prev := dynamo.Point{X: dynamo.NewExtended(dynamo.State{-0.1}, 0.9)}

	t.Run("tangent", func(t *testing.T) {
		p := newPredictor(models.NewPitchfork(), nil)
		guess := p.Predict(last, &prev, 0.1)
		assert.InDelta(t, 0, guess.U()[0], 1e-12)
		assert.InDelta(t, 1+0.1*tan.Lambda(), guess.Lambda(), 1e-12)
	})

	t.Run("secant", func(t *testing.T) {
		p := newPredictor(models.NewPitchfork(), func(c *dynamo.Config) { c.Predictor = dynamo.PredictSecant })
		guess := p.Predict(last, &prev, 0.1)
		assert.Greater(t, guess.U()[0], 0.0)
		assert.InDelta(t, 0.1, guess.Sub(last.X).WNorm(w), 1e-12)

		// without history the tangent is used
		first := p.Predict(last, nil, 0.1)
		assert.InDelta(t, 0, first.U()[0], 1e-12)
	})
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "bordered", FromBordered.String())
	assert.Equal(t, "secant", FromSecant.String())
	assert.Equal(t, "previous", FromPrevious.String())
}
