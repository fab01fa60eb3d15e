package sidecar

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/aide/internal/errors"
)

func collect(t *testing.T, s *Stream) ([]StreamEvent, error) {
	t.Helper()
	var events []StreamEvent
	for {
		ev, err := s.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func streamOf(body string) *Stream {
	return NewStream(io.NopCloser(strings.NewReader(body)))
}

func TestStream_Events(t *testing.T) {
	body := ": keep-alive\n\n" +
		"event: text\ndata: {\"delta\":\"Looking\"}\n\n" +
		"data: {\"type\":\"plan_step\",\"index\":0,\"title\":\"Setup\",\"description\":\"Step one\",\"files\":[\"a.go\"]}\n\n" +
		"event: plan_step\r\ndata: {\"index\":0,\r\ndata: \"description\":\" continues\"}\r\n\r\n" +
		"event: plan_step_complete\ndata: {\"index\":0}\n\n" +
		"event: run_command\ndata: {\"command\":\"go test ./...\",\"cwd\":\"/repo\"}\n\n" +
		"event: telemetry\ndata: {\"x\":1}\n\n" +
		"event: error\ndata: {\"message\":\"tool failed\"}\n\n" +
		"event: done\ndata: {\"success\":false,\"reason\":\"max_turns\"}\n\n" +
		"event: text\ndata: {\"delta\":\"after done\"}\n\n"

	events, err := collect(t, streamOf(body))
	require.NoError(t, err)
	require.Len(t, events, 7)

	assert.Equal(t, StreamEvent{Type: EventText, Text: "Looking"}, events[0])

	assert.Equal(t, EventPlanStep, events[1].Type)
	assert.Equal(t, 0, events[1].Step.Index)
	assert.Equal(t, "Setup", events[1].Step.Title)
	assert.Equal(t, []string{"a.go"}, events[1].Step.Files)

	assert.Equal(t, " continues", events[2].Step.Description, "multi-line data joins before decoding")

	assert.Equal(t, EventPlanStepComplete, events[3].Type)
	assert.Equal(t, &CommandProposal{Command: "go test ./...", Cwd: "/repo"}, events[4].Command)
	assert.Equal(t, StreamEvent{Type: EventError, Text: "tool failed"}, events[5])
	assert.Equal(t, StreamEvent{Type: EventDone, Success: false, Reason: "max_turns"}, events[6])
}

func TestStream_DoneSentinel(t *testing.T) {
	events, err := collect(t, streamOf("data: {\"type\":\"text\",\"delta\":\"hi\"}\n\ndata: [DONE]\n\n"))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, StreamEvent{Type: EventDone, Success: true, Reason: "done"}, events[1])
}

func TestStream_EOFWithoutBlankLine(t *testing.T) {
	events, err := collect(t, streamOf("event: text\ndata: {\"delta\":\"tail\"}"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "tail", events[0].Text)
}

func TestStream_RepairsMalformedData(t *testing.T) {
	events, err := collect(t, streamOf("event: plan_step\ndata: {'index': 2, 'description': 'fixed',}\n\n"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Step.Index)
	assert.Equal(t, "fixed", events[0].Step.Description)
}

func TestStream_InvalidEvents(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"plan step without index", "event: plan_step\ndata: {\"description\":\"x\"}\n\n"},
		{"run command without command", "event: run_command\ndata: {}\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collect(t, streamOf(tt.body))
			assert.ErrorIs(t, err, errors.ErrSidecarResponse)
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestStream_ReadError(t *testing.T) {
	s := NewStream(io.NopCloser(failingReader{}))
	_, err := s.Next()
	assert.ErrorIs(t, err, errors.ErrStreamClosed)
}

func TestClient_AgentChat(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathChat, r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		var req ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sess-1", req.SessionID)
		assert.Equal(t, "edit", req.Mode)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range []string{
			"event: plan_step\ndata: {\"index\":0,\"description\":\"Read config\"}\n\n",
			"event: plan_step\ndata: {\"index\":1,\"description\":\"Patch loader\"}\n\n",
			"event: done\ndata: {}\n\n",
		} {
			_, _ = io.WriteString(w, frame)
			flusher.Flush()
		}
	}))

	stream, err := c.AgentChat(context.Background(), ChatRequest{SessionID: "sess-1", Query: "fix it", Mode: "edit"})
	require.NoError(t, err)
	defer func() { assert.NoError(t, stream.Close()) }()

	events, err := collect(t, stream)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "Patch loader", events[1].Step.Description)
	assert.True(t, events[2].Success)

	assert.NoError(t, stream.Close(), "second Close is harmless")
}

func TestClient_AgentChat_Errors(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusTooManyRequests)
	}))

	_, err := c.AgentChat(context.Background(), ChatRequest{})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = c.AgentChat(context.Background(), ChatRequest{Query: "q"})
	var sidecarErr *errors.SidecarError
	require.ErrorAs(t, err, &sidecarErr)
	assert.True(t, sidecarErr.IsRetryable())
}
