package continuation

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/san-kum/contsim/internal/bifurcation"
	"github.com/san-kum/contsim/internal/dynamo"
	"github.com/san-kum/contsim/internal/newton"
	"github.com/san-kum/contsim/internal/predictor"
	"github.com/san-kum/contsim/internal/stepsize"
	"github.com/san-kum/contsim/internal/switching"
)

var ErrNotStarted = errors.New("continuation: driver not started")

type Option func(*Driver)

func WithLogger(l *logrus.Entry) Option {
	return func(d *Driver) { d.baseLog = l }
}

func WithID(id string) Option {
	return func(d *Driver) { d.id = id }
}

func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observers = append(d.observers, o) }
}

// Driver traces a single branch. It is not safe for concurrent use.
type Driver struct {
	id     string
	parent string
	depth  int

	prob dynamo.Problem
	cfg  dynamo.Config

	corr *newton.Corrector
	pred *predictor.Predictor
	ctrl *stepsize.Controller
	mon  *bifurcation.Monitor
	sw   *switching.Switcher

	baseLog   *logrus.Entry
	log       *logrus.Entry
	observers []Observer

	phase     Phase
	ds        float64
	guess     dynamo.Extended
	candidate dynamo.Point
	lastErr   error
	lastIt    int
	lastRes   float64
	record    *bifurcation.Record
	res       *Result
}

func NewDriver(prob dynamo.Problem, backend dynamo.Backend, cfg dynamo.Config, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	corr := newton.New(prob, backend, cfg.Newton, cfg.Weight)
	pred := predictor.New(prob, backend, cfg)
	d := &Driver{
		prob: prob,
		cfg:  cfg,
		corr: corr,
		pred: pred,
		ctrl: stepsize.New(cfg.Step),
		mon:  bifurcation.NewMonitor(prob, backend, corr, pred, cfg),
		sw:   switching.New(prob, backend, cfg),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.id == "" {
		d.id = uuid.NewString()
	}
	if d.baseLog == nil {
		d.baseLog = logrus.NewEntry(logrus.StandardLogger())
	}
	d.log = d.baseLog.WithFields(logrus.Fields{"branch": shortID(d.id), "depth": d.depth})
	return d, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (d *Driver) ID() string            { return d.id }
func (d *Driver) Phase() Phase          { return d.phase }
func (d *Driver) StepSize() float64     { return d.ds }
func (d *Driver) Result() *Result       { return d.res }
func (d *Driver) Config() dynamo.Config { return d.cfg }

// Points returns the accepted points so far. The slice must not be modified.
func (d *Driver) Points() []dynamo.Point {
	if d.res == nil {
		return nil
	}
	return d.res.Points
}

func (d *Driver) reset() {
	d.res = &Result{ID: d.id, Parent: d.parent, Depth: d.depth}
	d.mon.Reset()
	d.record = nil
	d.lastErr = nil
}

// Start corrects (u0, λ0) at fixed λ, computes the initial tangent in the
// configured direction and makes the result the first point of the branch.
func (d *Driver) Start(ctx context.Context, u0 dynamo.State, lambda0 float64) error {
	if len(u0) != d.prob.Dim() {
		return errors.Wrapf(dynamo.ErrDimensionMismatch, "start: state %d, problem %d", len(u0), d.prob.Dim())
	}
	d.reset()

	x0 := dynamo.NewExtended(u0, lambda0)
	el, _ := dynamo.NewExtended(make(dynamo.State, len(u0)), 1).Normalize(d.cfg.Weight)
	res, err := d.corr.Correct(ctx, newton.Request{Anchor: x0, Tangent: el, Ds: 0})
	if err != nil {
		return errors.Wrapf(err, "start: correcting initial guess at λ=%g", lambda0)
	}

	tan, err := d.pred.InitialTangent(res.X)
	if err != nil {
		return errors.Wrap(err, "start")
	}

	p := dynamo.Point{X: res.X, Tangent: tan, Iterations: res.Iterations, Residual: res.Residual}
	if err := d.diagnose(&p); err != nil {
		d.log.WithError(err).Warn("test functions unavailable at start")
	}
	d.ds = d.cfg.Step.Initial
	d.accept(p)
	d.mon.Observe(p)
	d.phase = Predicting
	d.log.WithFields(logrus.Fields{"lambda": p.Lambda(), "norm": p.Norm()}).Info("branch started")
	return nil
}

// StartFrom begins a branch at a seed. The seed point is not monitored, so
// the critical point it sits on does not trigger a detection.
func (d *Driver) StartFrom(ctx context.Context, seed Seed) error {
	if len(seed.X) != d.prob.Dim()+1 || len(seed.Tangent) != len(seed.X) {
		return errors.Wrapf(dynamo.ErrDimensionMismatch, "seed: point %d, tangent %d, problem %d",
			len(seed.X), len(seed.Tangent), d.prob.Dim())
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.parent = seed.Parent
	d.depth = seed.Depth
	d.log = d.baseLog.WithFields(logrus.Fields{"branch": shortID(d.id), "depth": d.depth, "parent": shortID(seed.Parent)})
	d.reset()

	tan, err := seed.Tangent.Normalize(d.cfg.Weight)
	if err != nil {
		return errors.Wrap(err, "seed")
	}
	p := dynamo.Point{X: seed.X.Clone(), Tangent: tan}
	p.Residual = dynamo.State(d.prob.Residual(p.X.U(), p.Lambda())).Norm()
	if err := d.diagnose(&p); err != nil {
		d.log.WithError(err).Debug("test functions unavailable at seed")
	}
	d.ds = d.ctrl.Clamp(d.cfg.Switching.Step)
	d.accept(p)
	d.phase = Predicting
	d.log.WithField("lambda", p.Lambda()).Info("branch started from seed")
	return nil
}

func (d *Driver) diagnose(p *dynamo.Point) error {
	s, err := d.mon.Evaluate(p.X, p.Tangent)
	p.Tests = s.Tests
	p.Unstable = s.Unstable
	return err
}

func (d *Driver) accept(p dynamo.Point) {
	d.res.Points = append(d.res.Points, p)
	for _, o := range d.observers {
		o.OnPoint(d.id, p)
	}
}

func (d *Driver) last() dynamo.Point {
	return d.res.Points[len(d.res.Points)-1]
}

func (d *Driver) prev() *dynamo.Point {
	if len(d.res.Points) < 2 {
		return nil
	}
	return &d.res.Points[len(d.res.Points)-2]
}

func (d *Driver) halt(reason Reason, err error) {
	d.phase = Halted
	d.res.Reason = reason
	if err != nil {
		d.res.Err = err
		d.res.Error = err.Error()
	}
	fields := logrus.Fields{"reason": reason, "points": len(d.res.Points), "bifurcations": len(d.res.Bifurcations)}
	if err != nil {
		d.log.WithFields(fields).WithError(err).Warn("branch halted")
	} else {
		d.log.WithFields(fields).Info("branch halted")
	}
	for _, o := range d.observers {
		o.OnHalt(d.id, d.res)
	}
}

// Step performs one transition of the state machine and returns the new
// phase. Errors of the branch itself are recorded in the Result; Step only
// fails when the driver was never started.
func (d *Driver) Step(ctx context.Context, term Terminator) (Phase, error) {
	switch d.phase {
	case Idle:
		return d.phase, ErrNotStarted

	case Predicting:
		if err := ctx.Err(); err != nil {
			d.halt(ReasonCancelled, err)
			break
		}
		d.guess = d.pred.Predict(d.last(), d.prev(), d.ds)
		d.phase = Correcting

	case Correcting:
		d.correct(ctx)

	case Rejected:
		d.reject()

	case Accepted:
		p := d.candidate
		d.accept(p)
		next, _ := d.ctrl.Next(d.ds, stepsize.Outcome{Converged: true, Iterations: p.Iterations})
		d.log.WithFields(logrus.Fields{
			"s": p.Arclength, "lambda": p.Lambda(), "norm": p.Norm(), "iterations": p.Iterations, "ds": next,
		}).Debug("point accepted")
		d.ds = next
		d.phase = Monitoring

	case Monitoring:
		d.monitor(ctx)

	case Switching:
		d.switchBranches()
		d.phase = Continuing

	case Continuing:
		if term != nil {
			if reason, stop := term(d.last(), len(d.res.Points)-1); stop {
				d.halt(reason, nil)
				break
			}
		}
		d.phase = Predicting

	case Halted:
	}
	return d.phase, nil
}

func (d *Driver) correct(ctx context.Context) {
	last := d.last()
	res, err := d.corr.Correct(ctx, newton.Request{Anchor: last.X, Tangent: last.Tangent, Ds: d.ds, Guess: d.guess})
	if err == nil && d.cfg.ValidateState && !res.X.IsValid() {
		err = &dynamo.ConvergenceError{Iterations: res.Iterations, Residual: res.Residual, Cause: dynamo.ErrInvalidState}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			d.halt(ReasonCancelled, ctxErr)
			return
		}
		d.lastIt, d.lastRes = 0, -1
		var ce *dynamo.ConvergenceError
		if errors.As(err, &ce) {
			d.lastIt = ce.Iterations
			if !math.IsNaN(ce.Residual) && !math.IsInf(ce.Residual, 0) {
				d.lastRes = ce.Residual
			}
		}
		d.lastErr = err
		d.phase = Rejected
		return
	}

	tan, src, terr := d.pred.NextTangent(res.X, last.X, last.Tangent)
	if terr != nil {
		d.log.WithError(terr).WithField("fallback", src.String()).Debug("tangent fallback")
	}
	p := dynamo.Point{
		X:          res.X,
		Tangent:    tan,
		Arclength:  last.Arclength + d.ds,
		Step:       d.ds,
		Iterations: res.Iterations,
		Residual:   res.Residual,
	}
	if err := d.diagnose(&p); err != nil {
		d.log.WithError(err).Warn("test functions unavailable")
	}
	d.candidate = p
	d.phase = Accepted
}

func (d *Driver) reject() {
	r := Rejection{
		Step:       len(d.res.Points),
		Ds:         d.ds,
		Iterations: d.lastIt,
		Residual:   d.lastRes,
		Err:        d.lastErr,
	}
	if d.lastErr != nil {
		r.Error = d.lastErr.Error()
	}
	d.res.Rejections = append(d.res.Rejections, r)
	for _, o := range d.observers {
		o.OnRejection(d.id, r)
	}

	next, err := d.ctrl.Next(d.ds, stepsize.Outcome{Converged: false, Iterations: d.lastIt})
	d.log.WithFields(logrus.Fields{"ds": d.ds, "next": next, "iterations": d.lastIt}).WithError(d.lastErr).Warn("step rejected")
	if err != nil {
		last := d.last()
		d.halt(ReasonStepExhausted, &dynamo.StepError{
			Step:      len(d.res.Points),
			Arclength: last.Arclength,
			Lambda:    last.Lambda(),
			Wrapped:   errors.Wrap(err, r.Error),
		})
		return
	}
	d.ds = next
	d.phase = Predicting
}

func (d *Driver) monitor(ctx context.Context) {
	ev := d.mon.Observe(d.last())
	if ev == nil {
		d.phase = Continuing
		return
	}

	rec := d.mon.Localize(ctx, ev)
	d.res.Bifurcations = append(d.res.Bifurcations, rec)
	for _, o := range d.observers {
		o.OnBifurcation(d.id, rec)
	}
	entry := d.log.WithFields(logrus.Fields{
		"kind": rec.Kind.String(), "lambda": rec.Lambda(), "s": rec.Arclength, "test": rec.Test, "iterations": rec.Iterations,
	})
	if rec.Err != nil {
		entry.WithError(rec.Err).Warn("bifurcation not localized")
	} else {
		entry.Info("bifurcation detected")
	}

	if rec.Kind == bifurcation.BranchPoint && d.cfg.Switching.Enabled {
		d.record = &rec
		d.phase = Switching
		return
	}
	d.phase = Continuing
}

func (d *Driver) switchBranches() {
	rec := d.record
	d.record = nil
	if rec == nil {
		return
	}
	dirs, err := d.sw.Directions(rec.X, rec.Tangent)
	if err != nil {
		d.res.SwitchErrors = append(d.res.SwitchErrors, err)
		d.log.WithError(err).Warn("branch switch skipped")
		return
	}
	for _, dir := range dirs {
		d.res.Seeds = append(d.res.Seeds, Seed{
			X:         rec.X.Clone(),
			Tangent:   dir,
			Parent:    d.id,
			Depth:     d.depth + 1,
			Arclength: rec.Arclength,
			Origin:    *rec,
		})
	}
	d.log.WithFields(logrus.Fields{"lambda": rec.Lambda(), "directions": len(dirs)}).Info("branch point seeds created")
}

// Run steps the driver until the branch halts.
func (d *Driver) Run(ctx context.Context, term Terminator) (*Result, error) {
	for d.phase != Halted {
		if _, err := d.Step(ctx, term); err != nil {
			return d.res, err
		}
	}
	return d.res, nil
}
