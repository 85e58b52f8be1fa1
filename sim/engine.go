package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/stox-sim/stox-sim/sim/report"
)

// Params are the simulation parameters for one run.
type Params struct {
	// InitialPopulation is the population cast into the root stage at the
	// start of every iteration.
	InitialPopulation float64
	// Iterations is the number of Monte Carlo iterations to run.
	Iterations int
	// Eps is the strictly positive quasi-zero substituted for a zero
	// transition value, so that a zero in one bootstrap draw is read as
	// "not observed in this sample" rather than an absolute impossibility.
	Eps float64
}

func (p Params) Validate() error {
	if p.InitialPopulation < 0 {
		return fmt.Errorf("initial population must be >= 0, got %g", p.InitialPopulation)
	}
	if p.Iterations < 1 {
		return fmt.Errorf("iteration count must be >= 1, got %d", p.Iterations)
	}
	if p.Eps <= 0 {
		return fmt.Errorf("eps must be > 0, got %g", p.Eps)
	}
	return nil
}

// RunStatus is the engine's state machine position.
type RunStatus int

const (
	StatusIdle RunStatus = iota
	StatusRunning
	StatusCompleted
	StatusCancelled
	StatusFailed
)

func (s RunStatus) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusRunning:
		return "Running"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	case StatusFailed:
		return "Failed"
	}
	return fmt.Sprintf("RunStatus(%d)", int(s))
}

// Engine propagates a population through a checked stage tree, one full
// top-down traversal per iteration, using bootstrap draws from the casting
// tables. Single-threaded: one run at a time, cancellation observed only
// between iterations so every emitted row is internally consistent.
type Engine struct {
	tree     *Tree
	castings *Registry
	params   Params
	rng      *rand.Rand

	status   RunStatus
	reported []*Stage
}

// NewEngine wires a validated model to a run configuration. The structural
// pass of the consistency check is re-run here: an engine over a
// structurally invalid tree is a precondition violation and is refused
// before any iteration can execute. Row-sum warnings do not block
// construction; surfacing them to a human is the caller's job.
func NewEngine(tree *Tree, castings *Registry, params Params, rng *rand.Rand) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New("engine requires a random source")
	}
	if rep := Check(tree, castings); !rep.OK {
		return nil, fmt.Errorf("model failed consistency check: %w", rep.Err)
	}
	return &Engine{
		tree:     tree,
		castings: castings,
		params:   params,
		rng:      rng,
		reported: tree.ReportedStages(),
	}, nil
}

func (e *Engine) Status() RunStatus { return e.status }

// ReportedStageIDs returns the output column ids in reported-stage order.
func (e *Engine) ReportedStageIDs() []string {
	ids := make([]string, len(e.reported))
	for i, s := range e.reported {
		ids[i] = s.ID
	}
	return ids
}

// ReportedStageNames returns the output column names in reported-stage order.
func (e *Engine) ReportedStageNames() []string {
	names := make([]string, len(e.reported))
	for i, s := range e.reported {
		names[i] = s.Name
	}
	return names
}

// Start begins a run and returns its row iterator. Starting while a run is
// in progress is a precondition violation. The context is the run's
// cancellation token, observed at iteration boundaries only.
func (e *Engine) Start(ctx context.Context) (*Run, error) {
	if e.status == StatusRunning {
		return nil, ErrRunActive
	}
	e.status = StatusRunning
	logrus.Infof("run started: initial=%g iterations=%d eps=%g reported=%d",
		e.params.InitialPopulation, e.params.Iterations, e.params.Eps, len(e.reported))
	return &Run{eng: e, ctx: ctx}, nil
}

// Run is the lazy, finite, non-restartable row sequence of one engine run.
type Run struct {
	eng  *Engine
	ctx  context.Context
	iter int
	err  error
	done bool
}

// Next executes one iteration and returns its row. It returns ok=false once
// the run has reached a terminal state: all iterations completed,
// cancellation requested, or a resolution failure (see Err). Rows already
// returned remain valid in every case.
func (r *Run) Next() (report.Row, bool) {
	if r.done {
		return report.Row{}, false
	}
	if err := r.ctx.Err(); err != nil {
		r.finish(StatusCancelled)
		logrus.Infof("run cancelled after %d of %d iterations", r.iter, r.eng.params.Iterations)
		return report.Row{}, false
	}

	r.iter++
	if err := r.eng.propagate(r.eng.tree.Root, r.eng.params.InitialPopulation); err != nil {
		r.err = err
		r.finish(StatusFailed)
		logrus.Errorf("run failed at iteration %d: %v", r.iter, err)
		return report.Row{}, false
	}

	values := make([]float64, len(r.eng.reported))
	for i, s := range r.eng.reported {
		values[i] = s.pop
	}
	row := report.Row{Iteration: r.iter, Values: values}
	logrus.Debugf("iteration %d complete", r.iter)

	if r.iter == r.eng.params.Iterations {
		r.finish(StatusCompleted)
		return row, true
	}
	return row, true
}

// Err returns the fatal run error, if any. Cancellation is not an error.
func (r *Run) Err() error { return r.err }

func (r *Run) finish(status RunStatus) {
	r.done = true
	r.eng.status = status
}

// propagate records n as the stage's current-iteration population and passes
// it on. Terminal stages stop; Direct stages forward n unchanged to their
// sole child; Caster stages draw one row of their casting uniformly at
// random (the bootstrap draw; a single-row casting is used as-is) and give
// child j the fraction in column j, with Eps substituted for zero so a
// branch never receives exactly zero population.
func (e *Engine) propagate(s *Stage, n float64) error {
	s.pop = n
	switch s.Type {
	case Success, Sink:
		return nil
	case Direct:
		return e.propagate(s.Children[0], n)
	}

	c, ok := e.castings.Lookup(s.Casting)
	if !ok {
		return &ResolutionError{StageID: s.ID, StageName: s.Name, Casting: s.Casting}
	}
	row := 0
	if c.Rows() > 1 {
		row = e.rng.Intn(c.Rows())
	}
	for j, child := range s.Children {
		f := c.At(row, j)
		if f <= 0 {
			f = e.params.Eps
		}
		if err := e.propagate(child, n*f); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the whole run and collects the rows into a result matrix.
// On cancellation the partial matrix is returned with a nil error; on a
// resolution failure the partial matrix is returned alongside the error.
func (e *Engine) Run(ctx context.Context) (*report.Matrix, error) {
	run, err := e.Start(ctx)
	if err != nil {
		return nil, err
	}
	m := report.NewMatrix(e.params.InitialPopulation, e.params.Eps,
		e.ReportedStageIDs(), e.ReportedStageNames())
	for {
		row, ok := run.Next()
		if !ok {
			break
		}
		m.Append(row)
	}
	return m, run.Err()
}
