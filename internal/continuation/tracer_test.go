package continuation

import (
	"context"
	"fmt"
	"math"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/contsim/internal/bifurcation"
	"github.com/san-kum/contsim/internal/dynamo"
	"github.com/san-kum/contsim/internal/linalg"
	"github.com/san-kum/contsim/internal/models"
)

// walled poisons the residual beyond a parameter limit, so every step
// across it is rejected.
type walled struct {
	*models.Pitchfork
	limit float64
}

func (w *walled) Residual(u dynamo.State, lambda float64) dynamo.State {
	if lambda > w.limit {
		return dynamo.State{math.NaN()}
	}
	return w.Pitchfork.Residual(u, lambda)
}

type countingObserver struct {
	mu           sync.Mutex
	points       map[string]int
	bifurcations int
	halts        int
	rejections   int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{points: make(map[string]int)}
}

func (o *countingObserver) OnPoint(branch string, _ dynamo.Point) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.points[branch]++
}

func (o *countingObserver) OnRejection(string, Rejection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejections++
}

func (o *countingObserver) OnBifurcation(string, bifurcation.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bifurcations++
}

func (o *countingObserver) OnHalt(string, *Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.halts++
}

var _ = Describe("Tracer", func() {
	for _, parallel := range []bool{false, true} {
		parallel := parallel

		Context(fmt.Sprintf("on the trivial pitchfork branch (parallel=%t)", parallel), Ordered, func() {
			var (
				tree *Tree
				obs  *countingObserver
				cfg  dynamo.Config
			)

			BeforeAll(func() {
				cfg = dynamo.DefaultConfig()
				cfg.Switching.Parallel = parallel
				cfg.Switching.MaxDepth = 1
				obs = newCountingObserver()

				tr, err := NewTracer(models.NewPitchfork(), linalg.NewDense(), cfg, quietLogger(), obs)
				Expect(err).NotTo(HaveOccurred())
				tree, err = tr.Trace(context.Background(), dynamo.State{0}, -0.5, Any(MaxSteps(60), ParameterBounds(-1, 0.5)))
				Expect(err).NotTo(HaveOccurred())
			})

			It("traces the root and both emanating branches", func() {
				Expect(tree.Branches).To(HaveLen(3))
				root := tree.Root()
				Expect(root.Depth).To(Equal(0))
				Expect(root.Parent).To(BeEmpty())
				for _, child := range tree.Branches[1:] {
					Expect(child.Depth).To(Equal(1))
					Expect(child.Parent).To(Equal(root.ID))
					Expect(child.ID).NotTo(Equal(root.ID))
				}
			})

			It("follows u² = λ on both children", func() {
				signs := map[bool]bool{}
				for _, child := range tree.Branches[1:] {
					Expect(child.Reason).To(Equal(ReasonParameterBound))
					Expect(len(child.Points)).To(BeNumerically(">", 2))
					for _, p := range child.Points {
						u := p.X.U()[0]
						Expect(u*u).To(BeNumerically("~", p.Lambda(), 1e-8))
					}
					last := child.Points[len(child.Points)-1]
					signs[last.X.U()[0] > 0] = true
					expectBranchInvariants(models.NewPitchfork(), cfg, child)
				}
				Expect(signs).To(HaveLen(2))
			})

			It("reports progress to observers", func() {
				Expect(obs.halts).To(Equal(3))
				Expect(obs.bifurcations).To(Equal(tree.Bifurcations()))
				Expect(obs.points).To(HaveLen(3))
				for _, b := range tree.Branches {
					Expect(obs.points[b.ID]).To(Equal(len(b.Points)))
				}
			})
		})
	}

	It("respects the branch limit", func() {
		cfg := dynamo.DefaultConfig()
		cfg.Switching.MaxBranches = 2
		tr, err := NewTracer(models.NewPitchfork(), linalg.NewDense(), cfg, quietLogger())
		Expect(err).NotTo(HaveOccurred())

		tree, err := tr.Trace(context.Background(), dynamo.State{0}, -0.5, Any(MaxSteps(60), ParameterBounds(-1, 0.5)))
		Expect(err).NotTo(HaveOccurred())
		Expect(tree.Branches).To(HaveLen(2))
	})

	It("does not switch when switching is disabled", func() {
		cfg := dynamo.DefaultConfig()
		cfg.Switching.Enabled = false
		tr, err := NewTracer(models.NewPitchfork(), linalg.NewDense(), cfg, quietLogger())
		Expect(err).NotTo(HaveOccurred())

		tree, err := tr.Trace(context.Background(), dynamo.State{0}, -0.5, ParameterBounds(-1, 0.5))
		Expect(err).NotTo(HaveOccurred())
		Expect(tree.Branches).To(HaveLen(1))
		Expect(tree.Root().Bifurcations).To(HaveLen(1))
		Expect(tree.Root().Seeds).To(BeEmpty())
	})

	It("aggregates branch failures without losing the tree", func() {
		prob := &walled{Pitchfork: models.NewPitchfork(), limit: 1.2}
		tr, err := NewTracer(prob, linalg.NewDense(), dynamo.DefaultConfig(), quietLogger())
		Expect(err).NotTo(HaveOccurred())

		tree, err := tr.Trace(context.Background(), dynamo.State{1}, 1, MaxSteps(1000))
		Expect(err).To(MatchError(dynamo.ErrStepSizeExhausted))
		Expect(tree).NotTo(BeNil())
		root := tree.Root()
		Expect(root.Reason).To(Equal(ReasonStepExhausted))
		Expect(root.Points[len(root.Points)-1].Lambda()).To(BeNumerically("<=", 1.2))
	})

	It("fails when the root cannot start", func() {
		tr, err := NewTracer(models.NewPitchfork(), linalg.NewDense(), dynamo.DefaultConfig(), quietLogger())
		Expect(err).NotTo(HaveOccurred())
		tree, err := tr.Trace(context.Background(), dynamo.State{1, 1}, 1, MaxSteps(5))
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		Expect(tree).To(BeNil())
	})
})
