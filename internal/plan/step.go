package plan

import (
	"slices"

	"github.com/google/uuid"

	"github.com/Iron-Ham/aide/internal/errors"
	"github.com/Iron-Ham/aide/internal/event"
)

// Update is one inbound progress message for a step, as decoded from the
// sidecar's agent stream or from a replay file.
type Update struct {
	// Index addresses the step. It is the step's permanent position.
	Index int `json:"index" yaml:"index"`
	// Description is a markdown fragment appended to the step's description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Title is the short step title. Only the first non-empty title is kept.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	// Files lists paths the step touches.
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`
	// ExchangeID correlates the update with the agent exchange that produced it.
	ExchangeID string `json:"exchange_id,omitempty" yaml:"exchange_id,omitempty"`
}

// HasDescription reports whether the update carries description content.
func (u Update) HasDescription() bool {
	return u.Description != ""
}

// Step is one unit of agent-reported progress. Its ID and index never change;
// its description and fragment list only grow.
type Step struct {
	id          string
	index       int
	title       string
	description string
	files       []string
	fragments   []Update
	complete    bool
	disposed    bool

	onDidChange   *event.Emitter[struct{}]
	onDidComplete *event.Emitter[struct{}]
	onDidDispose  *event.Emitter[struct{}]
}

// newStep builds a step from the first update seen for its index.
func newStep(u Update) *Step {
	s := &Step{
		id:            uuid.NewString(),
		index:         u.Index,
		title:         u.Title,
		description:   u.Description,
		fragments:     []Update{cloneUpdate(u)},
		onDidChange:   event.NewEmitter[struct{}]("step.changed"),
		onDidComplete: event.NewEmitter[struct{}]("step.completed"),
		onDidDispose:  event.NewEmitter[struct{}]("step.disposed"),
	}
	s.mergeFiles(u.Files)
	return s
}

// Apply appends the update to the step.
//
// An update for a different index returns an *errors.IndexMismatchError and
// leaves the step untouched. An update without description content is a
// no-op. Otherwise the description fragment and the full update record are
// appended and change listeners are notified before Apply returns.
func (s *Step) Apply(u Update) error {
	if u.Index != s.index {
		return errors.NewIndexMismatchError(s.index, u.Index)
	}
	if !u.HasDescription() {
		return nil
	}

	s.description += u.Description
	s.fragments = append(s.fragments, cloneUpdate(u))
	if s.title == "" && u.Title != "" {
		s.title = u.Title
	}
	s.mergeFiles(u.Files)

	s.onDidChange.Fire(struct{}{})
	return nil
}

// MarkComplete flags the step as finished. Marking an already complete step
// does nothing.
func (s *Step) MarkComplete() {
	if s.complete {
		return
	}
	s.complete = true
	s.onDidComplete.Fire(struct{}{})
	s.onDidChange.Fire(struct{}{})
}

func (s *Step) mergeFiles(files []string) {
	for _, f := range files {
		if f != "" && !slices.Contains(s.files, f) {
			s.files = append(s.files, f)
		}
	}
}

// ID returns the step's process-unique identifier.
func (s *Step) ID() string { return s.id }

// Index returns the step's position within its plan.
func (s *Step) Index() int { return s.index }

// Title returns the step title, if any update supplied one.
func (s *Step) Title() string { return s.title }

// Description returns the accumulated description.
func (s *Step) Description() string { return s.description }

// IsComplete reports whether the step has been marked complete.
func (s *Step) IsComplete() bool { return s.complete }

// Files returns a copy of the paths referenced by the step.
func (s *Step) Files() []string { return slices.Clone(s.files) }

// Fragments returns a copy of every update applied to the step, in order.
func (s *Step) Fragments() []Update {
	out := make([]Update, len(s.fragments))
	for i, u := range s.fragments {
		out[i] = cloneUpdate(u)
	}
	return out
}

// FragmentCount returns the number of applied updates without copying them.
func (s *Step) FragmentCount() int { return len(s.fragments) }

// OnDidChange registers fn to be called after every content change.
func (s *Step) OnDidChange(fn func()) (unsubscribe func()) {
	return s.onDidChange.Subscribe(func(struct{}) { fn() })
}

// OnDidComplete registers fn to be called when the step is marked complete.
func (s *Step) OnDidComplete(fn func()) (unsubscribe func()) {
	return s.onDidComplete.Subscribe(func(struct{}) { fn() })
}

// OnDidDispose registers fn to be called when the owning plan releases the step.
func (s *Step) OnDidDispose(fn func()) (unsubscribe func()) {
	return s.onDidDispose.Subscribe(func(struct{}) { fn() })
}

// dispose fires the step's disposal notification and releases its emitters.
// Only the owning plan calls it.
func (s *Step) dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.onDidDispose.Fire(struct{}{})
	s.onDidChange.Dispose()
	s.onDidComplete.Dispose()
	s.onDidDispose.Dispose()
}

func cloneUpdate(u Update) Update {
	u.Files = slices.Clone(u.Files)
	return u
}
