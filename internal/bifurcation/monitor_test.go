package bifurcation

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/contsim/internal/dynamo"
	"github.com/san-kum/contsim/internal/linalg"
	"github.com/san-kum/contsim/internal/models"
	"github.com/san-kum/contsim/internal/newton"
	"github.com/san-kum/contsim/internal/predictor"
)

func newMonitor(prob dynamo.Problem, mutate func(*dynamo.Config)) (*Monitor, dynamo.Config) {
	cfg := dynamo.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	backend := linalg.NewDense()
	corr := newton.New(prob, backend, cfg.Newton, cfg.Weight)
	pred := predictor.New(prob, backend, cfg)
	return NewMonitor(prob, backend, corr, pred, cfg), cfg
}

// point builds an accepted point with its test values filled in.
func point(t *testing.T, m *Monitor, x, dir dynamo.Extended, s float64) dynamo.Point {
	t.Helper()
	tan, err := dir.Normalize(m.weight)
	require.NoError(t, err)
	sample, err := m.Evaluate(x, tan)
	require.NoError(t, err)
	return dynamo.Point{X: x, Tangent: tan, Arclength: s, Tests: sample.Tests, Unstable: sample.Unstable}
}

func duffingPoint(t *testing.T, m *Monitor, x, s float64) dynamo.Point {
	lambda := -x + x*x*x
	return point(t, m,
		dynamo.NewExtended(dynamo.State{x, 0}, lambda),
		dynamo.NewExtended(dynamo.State{1, 0}, -1+3*x*x), s)
}

func TestKind_Text(t *testing.T) {
	for _, k := range []Kind{Unclassified, Fold, BranchPoint, Hopf} {
		b, err := k.MarshalText()
		require.NoError(t, err)
		var got Kind
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, k, got)
	}
	assert.Equal(t, "branch-point", BranchPoint.String())

	var k Kind
	assert.Error(t, k.UnmarshalText([]byte("cusp")))
}

func TestRecord_JSON(t *testing.T) {
	rec := Record{Kind: Hopf, X: dynamo.Extended{0, 0, 0.1}, Err: dynamo.ErrLocalization}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"hopf"`)
	assert.NotContains(t, string(b), "Err")
}

func TestEvaluate_Stability(t *testing.T) {
	m, _ := newMonitor(models.NewPitchfork(), nil)
	up := dynamo.NewExtended(dynamo.State{0}, 1)

	stable := point(t, m, dynamo.NewExtended(dynamo.State{0}, -0.3), up, 0)
	assert.Equal(t, 0, stable.Unstable)
	assert.Less(t, stable.Tests[dynamo.TestEigenvalue], 0.0)

	unstable := point(t, m, dynamo.NewExtended(dynamo.State{0}, 0.3), up, 0)
	assert.Equal(t, 1, unstable.Unstable)
	assert.InDelta(t, 0.3, unstable.Tests[dynamo.TestEigenvalue], 1e-12)

	// the bordered test flips with λ on the trivial branch, the fold test does not
	assert.Less(t, stable.Tests[dynamo.TestBordered]*unstable.Tests[dynamo.TestBordered], 0.0)
	assert.Greater(t, stable.Tests[dynamo.TestFold]*unstable.Tests[dynamo.TestFold], 0.0)
}

func TestEvaluate_NoSpectrum(t *testing.T) {
	m, _ := newMonitor(models.NewPitchfork(), func(c *dynamo.Config) {
		c.Bifurcation.Tests = []string{dynamo.TestDeterminant, dynamo.TestFold}
	})
	assert.Equal(t, []string{dynamo.TestFold, dynamo.TestDeterminant}, m.Tests())

	p := point(t, m, dynamo.NewExtended(dynamo.State{0}, 0.3), dynamo.NewExtended(dynamo.State{0}, 1), 0)
	assert.Equal(t, -1, p.Unstable)
	assert.InDelta(t, 1.0, p.Tests[dynamo.TestDeterminant], 1e-12)
}

func TestObserve(t *testing.T) {
	m, _ := newMonitor(models.NewPitchfork(), nil)
	mk := func(fold, bordered, eig, s float64) dynamo.Point {
		return dynamo.Point{Arclength: s, Tests: map[string]float64{
			dynamo.TestFold:       fold,
			dynamo.TestBordered:   bordered,
			dynamo.TestEigenvalue: eig,
		}}
	}

	assert.Nil(t, m.Observe(mk(1, -0.5, -1, 0)))
	assert.Nil(t, m.Observe(mk(1, -0.2, -0.5, 1)))

	// zero values carry no sign
	assert.Nil(t, m.Observe(mk(1, 0, 0, 2)))

	ev := m.Observe(mk(1, 0.3, 0.5, 3))
	require.NotNil(t, ev)
	assert.Equal(t, dynamo.TestBordered, ev.Test)
	assert.Equal(t, []string{dynamo.TestBordered, dynamo.TestEigenvalue}, ev.Changed)
	assert.Equal(t, 1.0, ev.Left.Arclength)
	assert.Equal(t, 3.0, ev.Right.Arclength)

	// the bracket is closed after the event
	assert.Nil(t, m.Observe(mk(1, 0.4, 0.6, 4)))

	ev = m.Observe(mk(-1, -0.4, -0.6, 5))
	require.NotNil(t, ev)
	assert.Equal(t, dynamo.TestFold, ev.Test)
	assert.Len(t, ev.Changed, 3)

	m.Reset()
	assert.Nil(t, m.Observe(mk(1, 1, 1, 6)))
}

func TestLocalize_Fold(t *testing.T) {
	m, _ := newMonitor(models.NewFiniteDifference(models.NewDuffing()), nil)

	left := duffingPoint(t, m, 0.5, 0)
	right := duffingPoint(t, m, 0.65, 0.2)
	require.Nil(t, m.Observe(left))
	ev := m.Observe(right)
	require.NotNil(t, ev)
	assert.Equal(t, dynamo.TestFold, ev.Test)

	rec := m.Localize(context.Background(), ev)
	require.NoError(t, rec.Err)
	assert.True(t, rec.Localized)
	assert.Equal(t, Fold, rec.Kind)

	xc := 1 / math.Sqrt(3)
	assert.InDelta(t, xc, rec.X.U()[0], 1e-6)
	assert.InDelta(t, -xc+xc*xc*xc, rec.Lambda(), 1e-8)
	assert.Greater(t, rec.Arclength, left.Arclength)
	assert.Less(t, rec.Arclength, right.Arclength+1)
	assert.NotEmpty(t, rec.Spectrum)
	// saddle on the middle branch, node on the upper one
	assert.Equal(t, 1, left.Unstable)
	assert.Equal(t, 0, right.Unstable)
	assert.Equal(t, -1, rec.Crossed)
}

func TestLocalize_BranchPoint(t *testing.T) {
	m, _ := newMonitor(models.NewPitchfork(), nil)
	up := dynamo.NewExtended(dynamo.State{0}, 1)

	left := point(t, m, dynamo.NewExtended(dynamo.State{0}, -0.04), up, 1)
	right := point(t, m, dynamo.NewExtended(dynamo.State{0}, 0.07), up, 1.1)
	m.Observe(left)
	ev := m.Observe(right)
	require.NotNil(t, ev)

	rec := m.Localize(context.Background(), ev)
	require.NoError(t, rec.Err)
	assert.Equal(t, BranchPoint, rec.Kind)
	assert.InDelta(t, 0, rec.Lambda(), 1e-8)
	assert.Contains(t, rec.Changed, dynamo.TestEigenvalue)
	assert.Equal(t, 1, rec.Crossed)
}

func TestLocalize_Hopf(t *testing.T) {
	m, _ := newMonitor(models.NewHopf(), nil)
	up := dynamo.NewExtended(dynamo.State{0, 0}, 1)

	m.Observe(point(t, m, dynamo.NewExtended(dynamo.State{0, 0}, -0.05), up, 0))
	ev := m.Observe(point(t, m, dynamo.NewExtended(dynamo.State{0, 0}, 0.03), up, 0.1))
	require.NotNil(t, ev)
	assert.Equal(t, []string{dynamo.TestEigenvalue}, ev.Changed)

	rec := m.Localize(context.Background(), ev)
	require.NoError(t, rec.Err)
	assert.Equal(t, Hopf, rec.Kind)
	assert.InDelta(t, 0, rec.Lambda(), 1e-8)
	require.Len(t, rec.Spectrum, 2)
	assert.InDelta(t, 1, math.Abs(rec.Spectrum[0].Im), 1e-8)
	assert.Equal(t, 2, rec.Crossed)
}

func TestLocalize_UnknownStability(t *testing.T) {
	m, _ := newMonitor(models.NewPitchfork(), func(c *dynamo.Config) {
		c.Bifurcation.Tests = []string{dynamo.TestFold, dynamo.TestBordered}
	})
	up := dynamo.NewExtended(dynamo.State{0}, 1)

	m.Observe(point(t, m, dynamo.NewExtended(dynamo.State{0}, -0.04), up, 1))
	ev := m.Observe(point(t, m, dynamo.NewExtended(dynamo.State{0}, 0.07), up, 1.1))
	require.NotNil(t, ev)
	assert.Equal(t, -1, ev.Right.Unstable)

	rec := m.Localize(context.Background(), ev)
	require.NoError(t, rec.Err)
	assert.Equal(t, 0, rec.Crossed)
}

func TestEvaluate_IllConditioned(t *testing.T) {
	prob := models.NewPitchfork()
	cfg := dynamo.DefaultConfig()
	cfg.Bifurcation.Tests = []string{dynamo.TestFold, dynamo.TestBordered, dynamo.TestDeterminant}
	up := dynamo.NewExtended(dynamo.State{0}, 1)

	cases := []struct {
		name     string
		limit    float64
		lambda   float64
		wantSign bool
	}{
		{"well conditioned", linalg.DefaultCondLimit, -0.05, true},
		{"above the backend limit", 10, -0.05, false},
		{"exactly singular", linalg.DefaultCondLimit, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &linalg.Dense{CondLimit: tc.limit}
			corr := newton.New(prob, backend, cfg.Newton, cfg.Weight)
			m := NewMonitor(prob, backend, corr, predictor.New(prob, backend, cfg), cfg)

			p := point(t, m, dynamo.NewExtended(dynamo.State{0}, tc.lambda), up, 0)
			if tc.wantSign {
				assert.Less(t, p.Tests[dynamo.TestBordered], 0.0)
				assert.Less(t, p.Tests[dynamo.TestDeterminant], 0.0)
			} else {
				assert.Zero(t, p.Tests[dynamo.TestBordered])
			}
			// the fold component is unaffected by conditioning
			assert.Greater(t, p.Tests[dynamo.TestFold], 0.0)
		})
	}
}

func TestLocalize_IterationCap(t *testing.T) {
	m, _ := newMonitor(models.NewFiniteDifference(models.NewDuffing()), func(c *dynamo.Config) {
		c.Bifurcation.MaxIterations = 1
	})

	m.Observe(duffingPoint(t, m, 0.5, 0))
	ev := m.Observe(duffingPoint(t, m, 0.65, 0.2))
	require.NotNil(t, ev)

	rec := m.Localize(context.Background(), ev)
	assert.ErrorIs(t, rec.Err, dynamo.ErrLocalization)
	assert.False(t, rec.Localized)
	assert.Equal(t, Unclassified, rec.Kind)
	assert.NotEmpty(t, rec.Error)
}
