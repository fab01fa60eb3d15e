package plan

// StepSnapshot is a serializable copy of a step's state.
type StepSnapshot struct {
	ID          string   `json:"id" yaml:"id"`
	Index       int      `json:"index" yaml:"index"`
	Title       string   `json:"title,omitempty" yaml:"title,omitempty"`
	Description string   `json:"description" yaml:"description"`
	Files       []string `json:"files,omitempty" yaml:"files,omitempty"`
	Fragments   int      `json:"fragments" yaml:"fragments"`
	Complete    bool     `json:"complete" yaml:"complete"`
}

// Snapshot is a serializable copy of a plan's state.
type Snapshot struct {
	SessionID string         `json:"session_id" yaml:"session_id"`
	Disposed  bool           `json:"disposed,omitempty" yaml:"disposed,omitempty"`
	Steps     []StepSnapshot `json:"steps" yaml:"steps"`
}

// Snapshot captures the step's current state.
func (s *Step) Snapshot() StepSnapshot {
	return StepSnapshot{
		ID:          s.id,
		Index:       s.index,
		Title:       s.title,
		Description: s.description,
		Files:       s.Files(),
		Fragments:   len(s.fragments),
		Complete:    s.complete,
	}
}

// Snapshot captures the plan's current state in index order.
func (p *Plan) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID: p.sessionID,
		Disposed:  p.disposed,
		Steps:     make([]StepSnapshot, 0, len(p.steps)),
	}
	for _, s := range p.steps {
		snap.Steps = append(snap.Steps, s.Snapshot())
	}
	return snap
}

// Completed returns how many steps are marked complete.
func (s Snapshot) Completed() int {
	n := 0
	for _, step := range s.Steps {
		if step.Complete {
			n++
		}
	}
	return n
}
