package continuation

import (
	"context"
	"errors"
	"math"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/contsim/internal/bifurcation"
	"github.com/san-kum/contsim/internal/dynamo"
	"github.com/san-kum/contsim/internal/linalg"
	"github.com/san-kum/contsim/internal/models"
	"github.com/san-kum/contsim/internal/newton"
)

// scriptedBackend fails the failAt-th Solve call counted from the last
// reset; failAt < 0 fails every call.
type scriptedBackend struct {
	*linalg.Dense
	mu     sync.Mutex
	calls  int
	failAt int
}

func (b *scriptedBackend) Solve(a mat.Matrix, rhs []float64) ([]float64, error) {
	b.mu.Lock()
	b.calls++
	fail := b.failAt < 0 || b.calls == b.failAt
	b.mu.Unlock()
	if fail {
		return nil, dynamo.ErrSingularSystem
	}
	return b.Dense.Solve(a, rhs)
}

func (b *scriptedBackend) arm(failAt int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = 0
	b.failAt = failAt
}

func newTestDriver(prob dynamo.Problem, backend dynamo.Backend, mutate func(*dynamo.Config)) *Driver {
	cfg := dynamo.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := NewDriver(prob, backend, cfg, WithLogger(quietLogger()))
	Expect(err).NotTo(HaveOccurred())
	return d
}

func expectBranchInvariants(prob dynamo.Problem, cfg dynamo.Config, res *Result) {
	Expect(res.Points).NotTo(BeEmpty())
	w := cfg.Weight
	for i, p := range res.Points {
		f := dynamo.State(prob.Residual(p.X.U(), p.Lambda()))
		Expect(f.Norm()).To(BeNumerically("<", cfg.Newton.Tolerance), "residual at point %d", i)
		Expect(p.Tangent.WNorm(w)).To(BeNumerically("~", 1, 1e-10), "tangent norm at point %d", i)
		if i == 0 {
			continue
		}
		prev := res.Points[i-1]
		Expect(p.Arclength).To(BeNumerically(">", prev.Arclength), "arclength at point %d", i)
		Expect(p.Step).To(BeNumerically("<=", cfg.Step.Max))
		Expect(p.Step).To(BeNumerically(">=", cfg.Step.Min))
		Expect(p.Tangent.WDot(prev.Tangent, w)).To(BeNumerically(">", 0), "tangent flip at point %d", i)
	}
}

func kinds(res *Result) []bifurcation.Kind {
	var ks []bifurcation.Kind
	for _, r := range res.Bifurcations {
		ks = append(ks, r.Kind)
	}
	return ks
}

var _ = Describe("Driver", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("before start", func() {
		It("refuses to step", func() {
			d := newTestDriver(models.NewPitchfork(), linalg.NewDense(), nil)
			Expect(d.Phase()).To(Equal(Idle))
			_, err := d.Step(ctx, nil)
			Expect(err).To(MatchError(ErrNotStarted))
		})

		It("rejects invalid parameters", func() {
			cfg := dynamo.DefaultConfig()
			cfg.Weight = 2
			_, err := NewDriver(models.NewPitchfork(), linalg.NewDense(), cfg)
			Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
		})

		It("rejects a start state of the wrong size", func() {
			d := newTestDriver(models.NewPitchfork(), linalg.NewDense(), nil)
			err := d.Start(ctx, dynamo.State{1, 2}, 0)
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		})
	})

	Context("on the pitchfork λu − u³ from (1, 1) toward decreasing λ", func() {
		var (
			prob *models.Pitchfork
			d    *Driver
			res  *Result
		)

		BeforeEach(func() {
			prob = models.NewPitchfork()
			d = newTestDriver(prob, linalg.NewDense(), func(c *dynamo.Config) { c.Direction = -1 })
			Expect(d.Start(ctx, dynamo.State{1}, 1)).To(Succeed())

			var err error
			res, err = d.Run(ctx, Any(MaxSteps(200), MaxArclength(3)))
			Expect(err).NotTo(HaveOccurred())
		})

		It("detects a fold at the origin", func() {
			Expect(res.Bifurcations).NotTo(BeEmpty())
			rec := res.Bifurcations[0]
			Expect(rec.Kind).To(Equal(bifurcation.Fold))
			Expect(rec.Localized).To(BeTrue())
			Expect(rec.Err).NotTo(HaveOccurred())
			Expect(rec.Lambda()).To(BeNumerically("~", 0, 1e-6))
			Expect(rec.X.U()[0]).To(BeNumerically("~", 0, 1e-5))
			Expect(rec.Lambda()).To(BeNumerically("~", rec.X.U()[0]*rec.X.U()[0], 1e-8))
			Expect(rec.Changed).To(ContainElement(dynamo.TestFold))
		})

		It("turns around and continues on the lower half", func() {
			last := res.Points[len(res.Points)-1]
			Expect(last.X.U()[0]).To(BeNumerically("<", 0))
			Expect(res.Reason).To(BeElementOf(ReasonMaxArclength, ReasonMaxSteps))
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(res.Seeds).To(BeEmpty())
		})

		It("keeps every branch invariant", func() {
			expectBranchInvariants(prob, d.Config(), res)
		})

		It("keeps accepted points on the parabola near the origin", func() {
			for i, p := range res.Points {
				u := p.X.U()[0]
				Expect(p.Lambda()).To(BeNumerically("~", u*u, 1e-8), "point %d", i)
			}
		})

		It("re-corrects accepted points in at most one iteration", func() {
			cfg := d.Config()
			corr := newton.New(prob, linalg.NewDense(), cfg.Newton, cfg.Weight)
			for _, p := range res.Points {
				out, err := corr.Correct(ctx, newton.Request{Anchor: p.X, Tangent: p.Tangent, Ds: 0})
				Expect(err).NotTo(HaveOccurred())
				Expect(out.Iterations).To(BeNumerically("<=", 1))
			}
		})
	})

	Context("on the trivial branch of the pitchfork", func() {
		var (
			prob *models.Pitchfork
			d    *Driver
			res  *Result
		)

		BeforeEach(func() {
			prob = models.NewPitchfork()
			d = newTestDriver(prob, linalg.NewDense(), nil)
			Expect(d.Start(ctx, dynamo.State{0}, -0.5)).To(Succeed())

			var err error
			res, err = d.Run(ctx, Any(MaxSteps(50), ParameterBounds(-1, 0.5)))
			Expect(err).NotTo(HaveOccurred())
		})

		It("classifies the crossing as a branch point", func() {
			Expect(kinds(res)).To(Equal([]bifurcation.Kind{bifurcation.BranchPoint}))
			rec := res.Bifurcations[0]
			Expect(rec.Lambda()).To(BeNumerically("~", 0, 1e-8))
			Expect(rec.Changed).To(ContainElements(dynamo.TestBordered, dynamo.TestEigenvalue))
		})

		It("produces exactly two transverse directions of opposite sign", func() {
			w := d.Config().Weight
			Expect(res.Seeds).To(HaveLen(2))
			a, b := res.Seeds[0], res.Seeds[1]
			Expect(a.Tangent.WDot(b.Tangent, w)).To(BeNumerically("~", -1, 1e-12))
			for _, s := range res.Seeds {
				Expect(s.Tangent.WDot(s.Origin.Tangent, w)).To(BeNumerically("~", 0, 1e-10))
				Expect(math.Abs(s.Tangent.U()[0])).To(BeNumerically("~", 1/math.Sqrt(w), 1e-10))
				Expect(s.Parent).To(Equal(d.ID()))
				Expect(s.Depth).To(Equal(1))
			}
		})

		It("seeds copies of the critical point", func() {
			res.Seeds[0].X[0] = 42
			Expect(res.Bifurcations[0].X[0]).NotTo(Equal(42.0))
			Expect(res.Seeds[1].X[0]).NotTo(Equal(42.0))
		})

		It("stops at the parameter bound and tracks stability", func() {
			Expect(res.Reason).To(Equal(ReasonParameterBound))
			first, last := res.Points[0], res.Points[len(res.Points)-1]
			Expect(first.Unstable).To(Equal(0))
			Expect(last.Unstable).To(Equal(1))
			expectBranchInvariants(prob, d.Config(), res)
		})
	})

	Context("on the Hopf normal form", func() {
		It("detects the Hopf point of the trivial equilibrium", func() {
			d := newTestDriver(models.NewHopf(), linalg.NewDense(), nil)
			Expect(d.Start(ctx, dynamo.State{0, 0}, -0.5)).To(Succeed())
			res, err := d.Run(ctx, ParameterBounds(-1, 0.5))
			Expect(err).NotTo(HaveOccurred())

			Expect(kinds(res)).To(Equal([]bifurcation.Kind{bifurcation.Hopf}))
			Expect(res.Bifurcations[0].Lambda()).To(BeNumerically("~", 0, 1e-8))
			Expect(res.Seeds).To(BeEmpty())
		})
	})

	Context("on the Bratu problem", func() {
		It("passes the fold and reports it", func() {
			prob := models.NewBratu(20)
			d := newTestDriver(prob, linalg.NewDense(), nil)
			Expect(d.Start(ctx, make(dynamo.State, 20), 0)).To(Succeed())
			res, err := d.Run(ctx, Any(MaxSteps(80), ParameterBounds(-0.1, 4)))
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Bifurcations).NotTo(BeEmpty())
			rec := res.Bifurcations[0]
			Expect(rec.Kind).To(Equal(bifurcation.Fold))
			Expect(rec.Lambda()).To(BeNumerically(">", 3.3))
			Expect(rec.Lambda()).To(BeNumerically("<", 3.7))

			last := res.Points[len(res.Points)-1]
			Expect(last.Lambda()).To(BeNumerically("<", rec.Lambda()))
			Expect(last.Norm()).To(BeNumerically(">", rec.X.U().Norm()))
			expectBranchInvariants(prob, d.Config(), res)
		})
	})

	Context("when the linear solver fails", func() {
		It("rejects the step with the failing iteration and halves the step once", func() {
			backend := &scriptedBackend{Dense: linalg.NewDense()}
			d := newTestDriver(models.NewPitchfork(), backend, func(c *dynamo.Config) { c.Direction = -1 })
			Expect(d.Start(ctx, dynamo.State{1}, 1)).To(Succeed())
			ds := d.StepSize()

			backend.arm(2)
			Expect(d.Step(ctx, nil)).To(Equal(Correcting))
			Expect(d.Step(ctx, nil)).To(Equal(Rejected))
			Expect(d.Step(ctx, nil)).To(Equal(Predicting))
			Expect(d.StepSize()).To(BeNumerically("~", ds/2, 1e-15))

			res := d.Result()
			Expect(res.Rejections).To(HaveLen(1))
			r := res.Rejections[0]
			Expect(r.Iterations).To(Equal(2))
			Expect(r.Ds).To(Equal(ds))
			Expect(r.Err).To(MatchError(dynamo.ErrConvergence))
			Expect(r.Err).To(MatchError(dynamo.ErrSingularSystem))

			var ce *dynamo.ConvergenceError
			Expect(r.Err).To(BeAssignableToTypeOf(ce))

			Expect(d.Step(ctx, nil)).To(Equal(Correcting))
			Expect(d.Step(ctx, nil)).To(Equal(Accepted))
			Expect(d.Step(ctx, nil)).To(Equal(Monitoring))
			Expect(d.Points()).To(HaveLen(2))
			Expect(d.Points()[1].Step).To(BeNumerically("~", ds/2, 1e-15))
		})

		It("halts with an exhausted step size and keeps the partial history", func() {
			backend := &scriptedBackend{Dense: linalg.NewDense()}
			d := newTestDriver(models.NewPitchfork(), backend, func(c *dynamo.Config) { c.Direction = -1 })
			Expect(d.Start(ctx, dynamo.State{1}, 1)).To(Succeed())

			// every correction solves at least once, so none can succeed
			backend.arm(-1)
			res, err := d.Run(ctx, MaxSteps(10))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Phase()).To(Equal(Halted))
			Expect(res.Reason).To(Equal(ReasonStepExhausted))
			Expect(res.Err).To(MatchError(dynamo.ErrStepSizeExhausted))
			Expect(res.Points).To(HaveLen(1))
			Expect(len(res.Rejections)).To(BeNumerically(">", 10))
			for _, r := range res.Rejections {
				Expect(r.Iterations).To(Equal(1))
				Expect(r.Err).To(MatchError(dynamo.ErrSingularSystem))
			}

			var se *dynamo.StepError
			Expect(errors.As(res.Err, &se)).To(BeTrue())
			Expect(se.Lambda).To(Equal(1.0))
		})
	})

	Context("when cancelled", func() {
		It("halts between steps", func() {
			d := newTestDriver(models.NewPitchfork(), linalg.NewDense(), nil)
			Expect(d.Start(ctx, dynamo.State{1}, 1)).To(Succeed())

			cctx, cancel := context.WithCancel(ctx)
			cancel()
			res, err := d.Run(cctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reason).To(Equal(ReasonCancelled))
			Expect(res.Err).To(MatchError(context.Canceled))
			Expect(res.Points).To(HaveLen(1))
		})
	})
})
