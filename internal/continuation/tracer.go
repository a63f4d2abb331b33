package continuation

import (
	"context"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/contsim/internal/dynamo"
)

// Tree is the outcome of a traced branch tree. Branches are ordered by
// depth, then by discovery.
type Tree struct {
	Branches []*Result `json:"branches"`
}

func (t *Tree) Root() *Result {
	if len(t.Branches) == 0 {
		return nil
	}
	return t.Branches[0]
}

// Bifurcations counts the records over all branches.
func (t *Tree) Bifurcations() int {
	n := 0
	for _, b := range t.Branches {
		n += len(b.Bifurcations)
	}
	return n
}

// Tracer follows a branch and, depth by depth, every branch emanating from
// its branch points.
type Tracer struct {
	prob      dynamo.Problem
	backend   dynamo.Backend
	cfg       dynamo.Config
	log       *logrus.Entry
	observers []Observer
}

func NewTracer(prob dynamo.Problem, backend dynamo.Backend, cfg dynamo.Config, log *logrus.Entry, observers ...Observer) (*Tracer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Tracer{prob: prob, backend: backend, cfg: cfg, log: log, observers: observers}, nil
}

func (t *Tracer) newDriver() (*Driver, error) {
	opts := []Option{WithLogger(t.log), WithID(uuid.NewString())}
	for _, o := range t.observers {
		opts = append(opts, WithObserver(o))
	}
	return NewDriver(t.prob, t.backend, t.cfg, opts...)
}

// Trace follows the branch through (u0, λ0) and its descendants. The tree
// is returned even when branches fail; their errors are aggregated in the
// returned error. A failure to start the root branch returns a nil tree.
func (t *Tracer) Trace(ctx context.Context, u0 dynamo.State, lambda0 float64, term Terminator) (*Tree, error) {
	root, err := t.newDriver()
	if err != nil {
		return nil, err
	}
	if err := root.Start(ctx, u0, lambda0); err != nil {
		return nil, errors.Wrap(err, "root branch")
	}
	res, _ := root.Run(ctx, term)

	tree := &Tree{Branches: []*Result{res}}
	var errs *multierror.Error
	if res.Err != nil && res.Reason != ReasonCancelled {
		errs = multierror.Append(errs, errors.Wrapf(res.Err, "branch %s", shortID(res.ID)))
	}

	frontier := res.Seeds
	sw := t.cfg.Switching
	for depth := 1; depth <= sw.MaxDepth && len(frontier) > 0; depth++ {
		if ctx.Err() != nil {
			break
		}
		if room := sw.MaxBranches - len(tree.Branches); len(frontier) > room {
			t.log.WithFields(logrus.Fields{"depth": depth, "dropped": len(frontier) - room}).Warn("branch limit reached")
			if room <= 0 {
				break
			}
			frontier = frontier[:room]
		}

		results, failures := t.traceSeeds(ctx, frontier, term)
		var next []Seed
		for i, r := range results {
			if failures[i] != nil {
				errs = multierror.Append(errs, failures[i])
				continue
			}
			tree.Branches = append(tree.Branches, r)
			if r.Err != nil && r.Reason != ReasonCancelled {
				errs = multierror.Append(errs, errors.Wrapf(r.Err, "branch %s", shortID(r.ID)))
			}
			next = append(next, r.Seeds...)
		}
		frontier = next
	}

	if ctx.Err() != nil {
		errs = multierror.Append(errs, ctx.Err())
	}
	return tree, errs.ErrorOrNil()
}

// traceSeeds runs one driver per seed. With Parallel set the drivers run on
// a bounded pool of goroutines; results keep the order of seeds.
func (t *Tracer) traceSeeds(ctx context.Context, seeds []Seed, term Terminator) ([]*Result, []error) {
	results := make([]*Result, len(seeds))
	failures := make([]error, len(seeds))

	run := func(i int) {
		d, err := t.newDriver()
		if err != nil {
			failures[i] = err
			return
		}
		if err := d.StartFrom(ctx, seeds[i]); err != nil {
			failures[i] = errors.Wrapf(err, "seed %d from branch %s", i, shortID(seeds[i].Parent))
			return
		}
		results[i], _ = d.Run(ctx, term)
	}

	if !t.cfg.Switching.Parallel {
		for i := range seeds {
			run(i)
		}
		return results, failures
	}

	var g errgroup.Group
	workers := t.cfg.Switching.Workers
	if workers <= 0 {
		workers = dynamo.Workers
	}
	g.SetLimit(workers)
	for i := range seeds {
		i := i
		g.Go(func() error {
			run(i)
			return nil
		})
	}
	_ = g.Wait()
	return results, failures
}
