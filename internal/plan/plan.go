// Package plan models the progress an agent reports while it works: a Plan is
// an ordered collection of Steps addressed by index, and both announce their
// mutations through typed emitters.
//
// All methods are meant to be called from a single goroutine (the one decoding
// the agent stream). Listeners run synchronously on that goroutine and must
// not mutate the plan or step that notified them.
package plan

import (
	"slices"
	"sort"

	"github.com/Iron-Ham/aide/internal/errors"
	"github.com/Iron-Ham/aide/internal/event"
)

// Plan is the ordered set of steps for one agent session. It exclusively owns
// its steps.
type Plan struct {
	sessionID string
	steps     []*Step // ordered by index
	byIndex   map[int]*Step
	disposed  bool

	onDidAddStep *event.Emitter[*Step]
	onDidDispose *event.Emitter[struct{}]
}

// New creates an empty, active plan for the given session.
func New(sessionID string) *Plan {
	return &Plan{
		sessionID:    sessionID,
		byIndex:      make(map[int]*Step),
		onDidAddStep: event.NewEmitter[*Step]("plan.step_added"),
		onDidDispose: event.NewEmitter[struct{}]("plan.disposed"),
	}
}

// SessionID returns the correlation key of the owning session.
func (p *Plan) SessionID() string { return p.sessionID }

// ApplyUpdate routes an update to the step at u.Index, creating the step if
// the index has not been seen before. Creation notifies OnDidAddStep listeners
// with the new step; updates to an existing step follow Step.Apply.
//
// Indices may arrive out of order or with gaps; steps are kept sorted by index.
func (p *Plan) ApplyUpdate(u Update) error {
	if p.disposed {
		return errors.ErrPlanDisposed
	}
	if u.Index < 0 {
		return errors.NewValidationError("step index must be non-negative").
			WithField("index").
			WithValue(u.Index)
	}

	if step, ok := p.byIndex[u.Index]; ok {
		if err := step.Apply(u); err != nil {
			var mismatch *errors.IndexMismatchError
			if errors.As(err, &mismatch) {
				mismatch.WithSessionID(p.sessionID)
			}
			return err
		}
		return nil
	}

	step := newStep(u)
	p.insert(step)
	p.onDidAddStep.Fire(step)
	return nil
}

// insert places step at its sorted position. Monotonically increasing indices
// always append.
func (p *Plan) insert(step *Step) {
	p.byIndex[step.index] = step
	n := len(p.steps)
	if n == 0 || p.steps[n-1].index < step.index {
		p.steps = append(p.steps, step)
		return
	}
	pos := sort.Search(n, func(i int) bool { return p.steps[i].index > step.index })
	p.steps = slices.Insert(p.steps, pos, step)
}

// CompleteStep marks the step at index complete.
func (p *Plan) CompleteStep(index int) error {
	if p.disposed {
		return errors.ErrPlanDisposed
	}
	step, ok := p.byIndex[index]
	if !ok {
		return errors.Wrapf(errors.ErrStepNotFound, "complete step %d", index)
	}
	step.MarkComplete()
	return nil
}

// Steps returns a snapshot of the current steps in index order. The slice is
// a copy; the steps are shared references owned by the plan.
func (p *Plan) Steps() []*Step {
	return slices.Clone(p.steps)
}

// Step returns the step at index, if present.
func (p *Plan) Step(index int) (*Step, bool) {
	s, ok := p.byIndex[index]
	return s, ok
}

// Len returns the number of steps.
func (p *Plan) Len() int { return len(p.steps) }

// ActiveStep returns the highest-indexed incomplete step, or nil.
func (p *Plan) ActiveStep() *Step {
	for i := len(p.steps) - 1; i >= 0; i-- {
		if !p.steps[i].complete {
			return p.steps[i]
		}
	}
	return nil
}

// OnDidAddStep registers fn to be called with every newly created step.
func (p *Plan) OnDidAddStep(fn func(*Step)) (unsubscribe func()) {
	return p.onDidAddStep.Subscribe(fn)
}

// OnDidDispose registers fn to be called once when the plan is disposed.
func (p *Plan) OnDidDispose(fn func()) (unsubscribe func()) {
	return p.onDidDispose.Subscribe(func(struct{}) { fn() })
}

// IsDisposed reports whether Dispose has been called.
func (p *Plan) IsDisposed() bool { return p.disposed }

// Dispose releases every step in index order (each fires its own disposal
// notification), then fires the plan's disposal notification, then releases
// the plan's emitters. Later calls do nothing.
func (p *Plan) Dispose() {
	if p.disposed {
		return
	}
	p.disposed = true

	for _, step := range p.steps {
		step.dispose()
	}
	p.onDidDispose.Fire(struct{}{})

	p.onDidAddStep.Dispose()
	p.onDidDispose.Dispose()
}
