package plan

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ScriptEntry is one recorded update. Complete entries mark the step at Index
// complete instead of applying content.
type ScriptEntry struct {
	Update   `yaml:",inline"`
	Complete bool `json:"complete,omitempty" yaml:"complete,omitempty"`
}

// Script is a recorded sequence of plan updates, used to replay an agent run
// offline.
type Script struct {
	SessionID string        `json:"session_id" yaml:"session_id"`
	Entries   []ScriptEntry `json:"updates" yaml:"updates"`
}

// LoadScript reads a script in either YAML form
//
//	session_id: demo
//	updates:
//	  - {index: 0, description: "Step one"}
//	  - {index: 0, complete: true}
//
// or as JSON lines, one entry object per line.
func LoadScript(r io.Reader) (*Script, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return &Script{}, nil
	}
	if trimmed[0] == '{' {
		return loadJSONLines(trimmed)
	}

	var script Script
	if err := yaml.Unmarshal(trimmed, &script); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	return &script, nil
}

func loadJSONLines(data []byte) (*Script, error) {
	script := &Script{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var entry ScriptEntry
		if err := json.Unmarshal(text, &entry); err != nil {
			return nil, fmt.Errorf("failed to parse script line %d: %w", line, err)
		}
		script.Entries = append(script.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return script, nil
}

// Replay applies every entry to p in order and stops at the first error.
func (s *Script) Replay(p *Plan) error {
	for i, entry := range s.Entries {
		var err error
		if entry.Complete {
			err = p.CompleteStep(entry.Index)
		} else {
			err = p.ApplyUpdate(entry.Update)
		}
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

// EncodeYAML renders the snapshot as a YAML document.
func (s Snapshot) EncodeYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
