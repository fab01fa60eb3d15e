// Package event defines event types for decoupling components in aide.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "plan.step_added", "terminal.completed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Event type names.
const (
	TypePlanStepAdded     = "plan.step_added"
	TypePlanStepChanged   = "plan.step_changed"
	TypePlanStepCompleted = "plan.step_completed"
	TypePlanDisposed      = "plan.disposed"

	TypeTerminalStarted   = "terminal.started"
	TypeTerminalLine      = "terminal.line"
	TypeTerminalCompleted = "terminal.completed"

	TypeContextKeyChanged = "contextkey.changed"

	TypeAgentText     = "agent.text"
	TypeAgentFinished = "agent.finished"

	TypeWorkspaceFileChanged = "workspace.file_changed"
)

// -----------------------------------------------------------------------------
// Plan Events
// -----------------------------------------------------------------------------

// PlanStepAddedEvent is emitted when a plan receives the first update for a new index.
type PlanStepAddedEvent struct {
	baseEvent
	SessionID   string
	StepID      string
	Index       int
	Title       string
	Description string
}

// NewPlanStepAddedEvent creates a PlanStepAddedEvent.
func NewPlanStepAddedEvent(sessionID, stepID string, index int, title, description string) PlanStepAddedEvent {
	return PlanStepAddedEvent{
		baseEvent:   newBaseEvent(TypePlanStepAdded),
		SessionID:   sessionID,
		StepID:      stepID,
		Index:       index,
		Title:       title,
		Description: description,
	}
}

// PlanStepChangedEvent is emitted when an existing step's description grows.
type PlanStepChangedEvent struct {
	baseEvent
	SessionID   string
	StepID      string
	Index       int
	Description string // full accumulated description
	Fragments   int    // number of fragments applied so far
}

// NewPlanStepChangedEvent creates a PlanStepChangedEvent.
func NewPlanStepChangedEvent(sessionID, stepID string, index int, description string, fragments int) PlanStepChangedEvent {
	return PlanStepChangedEvent{
		baseEvent:   newBaseEvent(TypePlanStepChanged),
		SessionID:   sessionID,
		StepID:      stepID,
		Index:       index,
		Description: description,
		Fragments:   fragments,
	}
}

// PlanStepCompletedEvent is emitted when a step is marked complete.
type PlanStepCompletedEvent struct {
	baseEvent
	SessionID string
	StepID    string
	Index     int
}

// NewPlanStepCompletedEvent creates a PlanStepCompletedEvent.
func NewPlanStepCompletedEvent(sessionID, stepID string, index int) PlanStepCompletedEvent {
	return PlanStepCompletedEvent{
		baseEvent: newBaseEvent(TypePlanStepCompleted),
		SessionID: sessionID,
		StepID:    stepID,
		Index:     index,
	}
}

// PlanDisposedEvent is emitted once when a plan is disposed.
type PlanDisposedEvent struct {
	baseEvent
	SessionID string
	StepCount int
}

// NewPlanDisposedEvent creates a PlanDisposedEvent.
func NewPlanDisposedEvent(sessionID string, stepCount int) PlanDisposedEvent {
	return PlanDisposedEvent{
		baseEvent: newBaseEvent(TypePlanDisposed),
		SessionID: sessionID,
		StepCount: stepCount,
	}
}

// -----------------------------------------------------------------------------
// Terminal Events
// -----------------------------------------------------------------------------

// TerminalStartedEvent is emitted when a command starts in a terminal.
type TerminalStartedEvent struct {
	baseEvent
	TerminalID string
	Cwd        string
	Command    string
}

// NewTerminalStartedEvent creates a TerminalStartedEvent.
func NewTerminalStartedEvent(terminalID, cwd, command string) TerminalStartedEvent {
	return TerminalStartedEvent{
		baseEvent:  newBaseEvent(TypeTerminalStarted),
		TerminalID: terminalID,
		Cwd:        cwd,
		Command:    command,
	}
}

// TerminalLineEvent is emitted for each line of command output.
type TerminalLineEvent struct {
	baseEvent
	TerminalID string
	Line       string
}

// NewTerminalLineEvent creates a TerminalLineEvent.
func NewTerminalLineEvent(terminalID, line string) TerminalLineEvent {
	return TerminalLineEvent{
		baseEvent:  newBaseEvent(TypeTerminalLine),
		TerminalID: terminalID,
		Line:       line,
	}
}

// TerminalCompletedEvent is emitted when a command exits or fails to run.
type TerminalCompletedEvent struct {
	baseEvent
	TerminalID string
	Command    string
	ExitCode   int
	Duration   time.Duration
	Err        error
}

// NewTerminalCompletedEvent creates a TerminalCompletedEvent.
func NewTerminalCompletedEvent(terminalID, command string, exitCode int, duration time.Duration, err error) TerminalCompletedEvent {
	return TerminalCompletedEvent{
		baseEvent:  newBaseEvent(TypeTerminalCompleted),
		TerminalID: terminalID,
		Command:    command,
		ExitCode:   exitCode,
		Duration:   duration,
		Err:        err,
	}
}

// -----------------------------------------------------------------------------
// Context Key Events
// -----------------------------------------------------------------------------

// ContextKeyChangedEvent is emitted when a context key takes a new value.
type ContextKeyChangedEvent struct {
	baseEvent
	Key      string
	OldValue any
	NewValue any
}

// NewContextKeyChangedEvent creates a ContextKeyChangedEvent.
func NewContextKeyChangedEvent(key string, oldValue, newValue any) ContextKeyChangedEvent {
	return ContextKeyChangedEvent{
		baseEvent: newBaseEvent(TypeContextKeyChanged),
		Key:       key,
		OldValue:  oldValue,
		NewValue:  newValue,
	}
}

// -----------------------------------------------------------------------------
// Agent Events
// -----------------------------------------------------------------------------

// AgentTextEvent carries a chunk of free-form agent answer text.
type AgentTextEvent struct {
	baseEvent
	SessionID string
	Delta     string
}

// NewAgentTextEvent creates an AgentTextEvent.
func NewAgentTextEvent(sessionID, delta string) AgentTextEvent {
	return AgentTextEvent{
		baseEvent: newBaseEvent(TypeAgentText),
		SessionID: sessionID,
		Delta:     delta,
	}
}

// AgentFinishedEvent is emitted when an agent session stream ends.
type AgentFinishedEvent struct {
	baseEvent
	SessionID string
	Success   bool
	Reason    string // "done", "error", "canceled"
}

// NewAgentFinishedEvent creates an AgentFinishedEvent.
func NewAgentFinishedEvent(sessionID string, success bool, reason string) AgentFinishedEvent {
	return AgentFinishedEvent{
		baseEvent: newBaseEvent(TypeAgentFinished),
		SessionID: sessionID,
		Success:   success,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Workspace Events
// -----------------------------------------------------------------------------

// WorkspaceFileChangedEvent is emitted by the workspace watcher after debouncing.
type WorkspaceFileChangedEvent struct {
	baseEvent
	Path string
}

// NewWorkspaceFileChangedEvent creates a WorkspaceFileChangedEvent.
func NewWorkspaceFileChangedEvent(path string) WorkspaceFileChangedEvent {
	return WorkspaceFileChangedEvent{
		baseEvent: newBaseEvent(TypeWorkspaceFileChanged),
		Path:      path,
	}
}
