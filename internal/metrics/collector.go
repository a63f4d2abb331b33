// Package metrics exposes continuation progress as Prometheus metrics and
// summarizes finished branches.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/san-kum/contsim/internal/bifurcation"
	"github.com/san-kum/contsim/internal/continuation"
	"github.com/san-kum/contsim/internal/dynamo"
)

const namespace = "contsim"

// Collector records branch progress. It implements continuation.Observer
// and is safe for concurrent use.
type Collector struct {
	PointsTotal       *prometheus.CounterVec
	RejectionsTotal   *prometheus.CounterVec
	BifurcationsTotal *prometheus.CounterVec
	HaltsTotal        *prometheus.CounterVec
	NewtonIterations  *prometheus.HistogramVec
	StepSize          *prometheus.HistogramVec
	ActiveBranches    *prometheus.GaugeVec

	problem string
	mu      sync.Mutex
	active  map[string]bool
}

var _ continuation.Observer = (*Collector)(nil)

// NewCollector registers the continuation metrics with reg, labelled with
// the problem name.
func NewCollector(reg prometheus.Registerer, problem string) *Collector {
	f := promauto.With(reg)
	return &Collector{
		PointsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_total",
			Help:      "Accepted continuation points.",
		}, []string{"problem"}),
		RejectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected corrector steps.",
		}, []string{"problem"}),
		BifurcationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bifurcations_total",
			Help:      "Detected bifurcations by kind.",
		}, []string{"problem", "kind"}),
		HaltsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branch_halts_total",
			Help:      "Halted branches by reason.",
		}, []string{"problem", "reason"}),
		NewtonIterations: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "newton_iterations",
			Help:      "Newton iterations per accepted point.",
			Buckets:   prometheus.LinearBuckets(0, 1, 12),
		}, []string{"problem"}),
		StepSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_size",
			Help:      "Arclength step of accepted points.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"problem"}),
		ActiveBranches: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_branches",
			Help:      "Branches currently being continued.",
		}, []string{"problem"}),
		problem: problem,
		active:  make(map[string]bool),
	}
}

func (c *Collector) OnPoint(branch string, p dynamo.Point) {
	c.mu.Lock()
	if !c.active[branch] {
		c.active[branch] = true
		c.ActiveBranches.WithLabelValues(c.problem).Inc()
	}
	c.mu.Unlock()

	c.PointsTotal.WithLabelValues(c.problem).Inc()
	c.NewtonIterations.WithLabelValues(c.problem).Observe(float64(p.Iterations))
	if p.Step > 0 {
		c.StepSize.WithLabelValues(c.problem).Observe(p.Step)
	}
}

func (c *Collector) OnRejection(string, continuation.Rejection) {
	c.RejectionsTotal.WithLabelValues(c.problem).Inc()
}

func (c *Collector) OnBifurcation(_ string, r bifurcation.Record) {
	c.BifurcationsTotal.WithLabelValues(c.problem, r.Kind.String()).Inc()
}

func (c *Collector) OnHalt(branch string, res *continuation.Result) {
	c.mu.Lock()
	if c.active[branch] {
		delete(c.active, branch)
		c.ActiveBranches.WithLabelValues(c.problem).Dec()
	}
	c.mu.Unlock()

	c.HaltsTotal.WithLabelValues(c.problem, string(res.Reason)).Inc()
}
