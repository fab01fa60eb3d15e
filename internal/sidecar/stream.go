package sidecar

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonrepair"

	"github.com/Iron-Ham/aide/internal/errors"
	"github.com/Iron-Ham/aide/internal/plan"
)

// EventType classifies a StreamEvent.
type EventType string

// Stream event types.
const (
	EventText             EventType = "text"
	EventPlanStep         EventType = "plan_step"
	EventPlanStepComplete EventType = "plan_step_complete"
	EventRunCommand       EventType = "run_command"
	EventDone             EventType = "done"
	EventError            EventType = "error"
)

// ChatRequest starts an agent exchange.
type ChatRequest struct {
	SessionID  string `json:"session_id"`
	ExchangeID string `json:"exchange_id,omitempty"`
	Query      string `json:"query"`
	// Mode is "explore" or "edit".
	Mode      string   `json:"mode,omitempty"`
	OpenFiles []string `json:"open_files,omitempty"`
	RepoRoot  string   `json:"repo_root,omitempty"`
}

// CommandProposal is a shell command the agent wants to run.
type CommandProposal struct {
	Command string `json:"command"`
	Cwd     string `json:"cwd,omitempty"`
}

// StreamEvent is one decoded agent event. Only the field matching Type is set.
type StreamEvent struct {
	Type EventType
	// Text is the answer delta for EventText and the message for EventError.
	Text string
	// Step is set for EventPlanStep and EventPlanStepComplete (Index only).
	Step *plan.Update
	// Command is set for EventRunCommand.
	Command *CommandProposal
	// Success and Reason describe EventDone.
	Success bool
	Reason  string
}

// wireEvent is the union of every payload shape.
type wireEvent struct {
	Type string `json:"type"`

	Delta   string `json:"delta"`
	Message string `json:"message"`

	Index       *int     `json:"index"`
	Description string   `json:"description"`
	Title       string   `json:"title"`
	Files       []string `json:"files"`
	ExchangeID  string   `json:"exchange_id"`

	Command string `json:"command"`
	Cwd     string `json:"cwd"`

	Success *bool  `json:"success"`
	Reason  string `json:"reason"`
}

// Stream reads agent events from a chat response. Next must not be called
// concurrently; Close may be called from any goroutine.
type Stream struct {
	body    io.ReadCloser
	reader  *bufio.Reader
	done    bool
	closeMu sync.Once
}

// AgentChat starts an agent exchange and returns its event stream. The
// stream lives until ctx is canceled, the server finishes, or Close is called.
func (c *Client) AgentChat(ctx context.Context, req ChatRequest) (*Stream, error) {
	if req.Query == "" {
		return nil, errors.NewValidationError("chat query is required").WithField("query")
	}
	resp, err := c.send(ctx, http.MethodPost, PathChat, req, "text/event-stream")
	if err != nil {
		return nil, err
	}
	c.logger.WithSession(req.SessionID).Debug("agent stream opened", "exchange_id", req.ExchangeID)
	return NewStream(resp.Body), nil
}

// NewStream wraps an SSE body.
func NewStream(body io.ReadCloser) *Stream {
	return &Stream{body: body, reader: bufio.NewReaderSize(body, 64*1024)}
}

// Next returns the next event. It returns io.EOF after a done event or when
// the server closes the stream. Keep-alive comments and events of unknown
// type are skipped.
func (s *Stream) Next() (StreamEvent, error) {
	for {
		if s.done {
			return StreamEvent{}, io.EOF
		}
		name, data, err := s.readFrame()
		if err != nil {
			if err == io.EOF {
				s.done = true
			}
			return StreamEvent{}, err
		}
		if data == "" && name == "" {
			continue
		}

		ev, ok, err := decodeEvent(name, data)
		if err != nil {
			return StreamEvent{}, err
		}
		if !ok {
			continue
		}
		if ev.Type == EventDone {
			s.done = true
		}
		return ev, nil
	}
}

// readFrame reads lines up to the next blank line and returns the event name
// and the joined data lines.
func (s *Stream) readFrame() (name, data string, err error) {
	var dataLines []string
	sawField := false
	for {
		line, readErr := s.reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return "", "", fmt.Errorf("%w: %v", errors.ErrStreamClosed, readErr)
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if sawField {
				return name, strings.Join(dataLines, "\n"), nil
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				name = value
				sawField = true
			case "data":
				dataLines = append(dataLines, value)
				sawField = true
			}
		}

		if readErr == io.EOF {
			if sawField {
				return name, strings.Join(dataLines, "\n"), nil
			}
			return "", "", io.EOF
		}
	}
}

// decodeEvent converts a frame into a StreamEvent. ok is false for frames
// that carry nothing actionable.
func decodeEvent(name, data string) (ev StreamEvent, ok bool, err error) {
	if strings.TrimSpace(data) == "[DONE]" {
		return StreamEvent{Type: EventDone, Success: true, Reason: "done"}, true, nil
	}

	var w wireEvent
	if strings.TrimSpace(data) != "" {
		if err := unmarshalLenient(data, &w); err != nil {
			return StreamEvent{}, false, err
		}
	}
	typ := EventType(name)
	if typ == "" || typ == "message" {
		typ = EventType(w.Type)
	}

	switch typ {
	case EventText:
		return StreamEvent{Type: EventText, Text: w.Delta}, w.Delta != "", nil
	case EventError:
		return StreamEvent{Type: EventError, Text: w.Message}, true, nil
	case EventPlanStep, EventPlanStepComplete:
		if w.Index == nil {
			return StreamEvent{}, false, fmt.Errorf("%w: %s event without index", errors.ErrSidecarResponse, typ)
		}
		return StreamEvent{Type: typ, Step: &plan.Update{
			Index:       *w.Index,
			Description: w.Description,
			Title:       w.Title,
			Files:       w.Files,
			ExchangeID:  w.ExchangeID,
		}}, true, nil
	case EventRunCommand:
		if w.Command == "" {
			return StreamEvent{}, false, fmt.Errorf("%w: run_command event without command", errors.ErrSidecarResponse)
		}
		return StreamEvent{Type: EventRunCommand, Command: &CommandProposal{Command: w.Command, Cwd: w.Cwd}}, true, nil
	case EventDone:
		success := w.Success == nil || *w.Success
		reason := w.Reason
		if reason == "" {
			reason = "done"
		}
		return StreamEvent{Type: EventDone, Success: success, Reason: reason}, true, nil
	default:
		return StreamEvent{}, false, nil
	}
}

// unmarshalLenient decodes data, repairing common damage (trailing commas,
// truncated objects, single quotes) before giving up.
func unmarshalLenient(data string, v any) error {
	if err := json.Unmarshal([]byte(data), v); err == nil {
		return nil
	}
	fixed, repairErr := jsonrepair.JSONRepair(data)
	if repairErr != nil {
		return fmt.Errorf("%w: malformed event data: %v", errors.ErrSidecarResponse, repairErr)
	}
	if err := json.Unmarshal([]byte(fixed), v); err != nil {
		return fmt.Errorf("%w: malformed event data: %v", errors.ErrSidecarResponse, err)
	}
	return nil
}

// Close releases the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeMu.Do(func() { err = s.body.Close() })
	return err
}
