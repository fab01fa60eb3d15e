// Package contextkeys declares the probe-state context keys and holds their
// current values.
//
// Keys are static, typed declarations. A Service stores the live values and
// publishes a ContextKeyChangedEvent on the bus whenever a value actually
// changes, so UIs can react to probe state without polling.
package contextkeys

import (
	"fmt"
	"slices"
)

// Status is the lifecycle state of the current probe.
type Status string

// Probe statuses
const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusFailed     Status = "failed"
)

// Mode is whether the agent may edit files.
type Mode string

// Probe modes
const (
	ModeExplore Mode = "explore"
	ModeEdit    Mode = "edit"
)

// Key is a typed context key declaration.
type Key[T comparable] struct {
	Name        string
	Description string
	Default     T
	// Values, when non-empty, restricts the key to an enumerated set.
	Values []T
}

// Valid reports whether v is an acceptable value for the key.
func (k Key[T]) Valid(v T) bool {
	return len(k.Values) == 0 || slices.Contains(k.Values, v)
}

// Declaration describes a key independent of its value type.
type Declaration struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Type        string   `json:"type" yaml:"type"`
	Default     any      `json:"default" yaml:"default"`
	Values      []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// Declaration returns the untyped description of k.
func (k Key[T]) Declaration() Declaration {
	var values []string
	for _, v := range k.Values {
		values = append(values, fmt.Sprint(v))
	}
	return Declaration{
		Name:        k.Name,
		Description: k.Description,
		Type:        fmt.Sprintf("%T", k.Default),
		Default:     k.Default,
		Values:      values,
	}
}

var (
	// ProbeStatus tracks the lifecycle of the current probe.
	ProbeStatus = Key[Status]{
		Name:        "aide.probe.status",
		Description: "Lifecycle state of the current probe",
		Default:     StatusIdle,
		Values:      []Status{StatusIdle, StatusInProgress, StatusFinished, StatusFailed},
	}

	// ProbeIsActive is true while an agent stream is being consumed.
	ProbeIsActive = Key[bool]{
		Name:        "aide.probe.isActive",
		Description: "Whether an agent probe is currently running",
		Default:     false,
	}

	// ProbeHasPlan is true once the current probe reported at least one step.
	ProbeHasPlan = Key[bool]{
		Name:        "aide.probe.hasPlan",
		Description: "Whether the current probe has produced a plan",
		Default:     false,
	}

	// ProbeMode is the mode the probe was started in.
	ProbeMode = Key[Mode]{
		Name:        "aide.probe.mode",
		Description: "Mode of the current probe",
		Default:     ModeExplore,
		Values:      []Mode{ModeExplore, ModeEdit},
	}
)

// All returns every declared key in declaration order.
func All() []Declaration {
	return []Declaration{
		ProbeStatus.Declaration(),
		ProbeIsActive.Declaration(),
		ProbeHasPlan.Declaration(),
		ProbeMode.Declaration(),
	}
}

// Lookup returns the declaration named name.
func Lookup(name string) (Declaration, bool) {
	for _, d := range All() {
		if d.Name == name {
			return d, true
		}
	}
	return Declaration{}, false
}
