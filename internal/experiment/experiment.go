package experiment

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/san-kum/contsim/internal/config"
	"github.com/san-kum/contsim/internal/continuation"
	"github.com/san-kum/contsim/internal/dynamo"
	"github.com/san-kum/contsim/internal/linalg"
)

// Experiment binds a run configuration to a concrete problem and backend.
type Experiment struct {
	cfg       *config.Config
	prob      dynamo.Problem
	backend   dynamo.Backend
	log       *logrus.Entry
	observers []continuation.Observer
}

func New(cfg *config.Config, reg *Registry) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	prob, err := reg.GetProblem(cfg.Problem, cfg.Params)
	if err != nil {
		return nil, err
	}
	return &Experiment{
		cfg:     cfg,
		prob:    prob,
		backend: linalg.NewDense(),
		log:     logrus.WithField("problem", cfg.Problem),
	}, nil
}

func (e *Experiment) SetLogger(l *logrus.Entry) { e.log = l }

func (e *Experiment) AddObserver(o continuation.Observer) {
	e.observers = append(e.observers, o)
}

func (e *Experiment) Problem() dynamo.Problem { return e.prob }

func (e *Experiment) Config() *config.Config { return e.cfg }

// Run traces the branch tree from the configured start.
func (e *Experiment) Run(ctx context.Context) (*continuation.Tree, error) {
	u0, err := e.cfg.InitialState(e.prob.Dim())
	if err != nil {
		return nil, errors.Wrap(err, e.cfg.Problem)
	}
	tr, err := continuation.NewTracer(e.prob, e.backend, e.cfg.Continuation, e.log, e.observers...)
	if err != nil {
		return nil, err
	}
	return tr.Trace(ctx, u0, e.cfg.Start.Lambda, e.cfg.Terminator())
}
