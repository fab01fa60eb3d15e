package plan

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/aide/internal/errors"
)

func TestLoadScript_YAML(t *testing.T) {
	input := `
session_id: demo
updates:
  - index: 0
    description: "Step one"
    title: Setup
  - index: 0
    description: " continues"
  - index: 1
    description: "Step two"
    files: [main.go]
  - index: 0
    complete: true
`
	script, err := LoadScript(strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadScript error = %v", err)
	}
	if script.SessionID != "demo" {
		t.Errorf("SessionID = %q, want demo", script.SessionID)
	}
	if len(script.Entries) != 4 {
		t.Fatalf("len(Entries) = %d, want 4", len(script.Entries))
	}
	if script.Entries[0].Title != "Setup" || !script.Entries[3].Complete {
		t.Errorf("inline fields not decoded: %+v", script.Entries)
	}

	p := New(script.SessionID)
	if err := script.Replay(p); err != nil {
		t.Fatalf("Replay error = %v", err)
	}
	s0, _ := p.Step(0)
	if s0.Description() != "Step one continues" || !s0.IsComplete() {
		t.Errorf("step 0 = %q complete=%v", s0.Description(), s0.IsComplete())
	}
	s1, _ := p.Step(1)
	if files := s1.Files(); len(files) != 1 || files[0] != "main.go" {
		t.Errorf("step 1 files = %v", files)
	}
}

func TestLoadScript_JSONLines(t *testing.T) {
	input := `{"index":0,"description":"Step one"}

{"index":1,"description":"Step two","exchange_id":"ex-1"}
{"index":1,"complete":true}
`
	script, err := LoadScript(strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadScript error = %v", err)
	}
	if len(script.Entries) != 3 {
		t.Fatalf("len(Entries) = %d, want 3", len(script.Entries))
	}
	if script.Entries[1].ExchangeID != "ex-1" {
		t.Errorf("ExchangeID = %q, want ex-1", script.Entries[1].ExchangeID)
	}
}

func TestLoadScript_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bad json line", "{\"index\":0}\n{not json}\n"},
		{"bad yaml", "updates: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadScript(strings.NewReader(tt.input)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadScript_Empty(t *testing.T) {
	script, err := LoadScript(strings.NewReader("  \n"))
	if err != nil {
		t.Fatalf("LoadScript error = %v", err)
	}
	if len(script.Entries) != 0 {
		t.Errorf("expected no entries")
	}
}

func TestScript_ReplayStopsAtFirstError(t *testing.T) {
	script := &Script{Entries: []ScriptEntry{
		{Update: Update{Index: 0, Description: "A"}},
		{Update: Update{Index: 3}, Complete: true},
		{Update: Update{Index: 1, Description: "never applied"}},
	}}
	p := New("sess")
	err := script.Replay(p)
	if !errors.Is(err, errors.ErrStepNotFound) {
		t.Fatalf("Replay error = %v, want ErrStepNotFound", err)
	}
	if !strings.Contains(err.Error(), "entry 1") {
		t.Errorf("error should name the failing entry: %v", err)
	}
	if p.Len() != 1 {
		t.Errorf("Len() = %d, want 1", p.Len())
	}
}

func TestSnapshot_EncodeYAML(t *testing.T) {
	p := New("sess")
	_ = p.ApplyUpdate(Update{Index: 0, Description: "A", Title: "First"})
	_ = p.ApplyUpdate(Update{Index: 1, Description: "B"})
	_ = p.CompleteStep(0)

	snap := p.Snapshot()
	if snap.Completed() != 1 {
		t.Errorf("Completed() = %d, want 1", snap.Completed())
	}

	data, err := snap.EncodeYAML()
	if err != nil {
		t.Fatalf("EncodeYAML error = %v", err)
	}

	var decoded Snapshot
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("yaml.Unmarshal error = %v", err)
	}
	if decoded.SessionID != "sess" || len(decoded.Steps) != 2 {
		t.Fatalf("decoded = %+v", decoded)
	}
	if decoded.Steps[0].Title != "First" || !decoded.Steps[0].Complete || decoded.Steps[1].Description != "B" {
		t.Errorf("decoded steps = %+v", decoded.Steps)
	}
}
