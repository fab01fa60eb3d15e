package terminal

import (
	"context"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/aide/internal/errors"
)

func TestScanPane(t *testing.T) {
	token := "__AIDE_DONE_abc"
	marker := regexp.MustCompile("^" + token + `:(\d+)$`)

	tests := []struct {
		name     string
		captured string
		lines    []string
		code     int
		done     bool
	}{
		{
			name:     "running holds back partial last line",
			captured: "first\nsecond\npart",
			lines:    []string{"first", "second"},
		},
		{
			name:     "finished",
			captured: "first\nsecond\n\n" + token + ":2\n\n\n",
			lines:    []string{"first", "second"},
			code:     2,
			done:     true,
		},
		{
			name:     "echoed command is skipped",
			captured: "printf '%s:%d' " + token + " $?\nout\n\n" + token + ":0\n",
			lines:    []string{"out"},
			done:     true,
		},
		{
			name:     "padding is trimmed",
			captured: "a   \nb\n   \n",
			lines:    []string{"a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, code, done := scanPane(tt.captured, token, marker)
			if !slices.Equal(lines, tt.lines) || code != tt.code || done != tt.done {
				t.Errorf("scanPane = %q, %d, %v; want %q, %d, %v", lines, code, done, tt.lines, tt.code, tt.done)
			}
		})
	}
}

func TestWrapWithMarker(t *testing.T) {
	got := wrapWithMarker("make test", "__AIDE_DONE_x")
	if !strings.HasPrefix(got, "make test\n") {
		t.Errorf("command should come first: %q", got)
	}
	if strings.Contains(got, "__AIDE_DONE_x:") {
		t.Errorf("literal marker must not appear in the typed text: %q", got)
	}
}

func TestPaneEmitter(t *testing.T) {
	seq := func(from, to int) []string {
		var out []string
		for i := from; i <= to; i++ {
			out = append(out, "l"+strconv.Itoa(i))
		}
		return out
	}

	steps := []struct {
		name    string
		capture []string
		want    []string
	}{
		{"first capture", seq(1, 3), seq(1, 3)},
		{"growth", seq(1, 5), seq(4, 5)},
		{"unchanged", seq(1, 5), nil},
		{"empty capture", nil, nil},
		{"top of history dropped", seq(3, 6), seq(6, 6)},
		{"shorter than what was emitted", seq(6, 8), seq(7, 8)},
		{"same length but shifted", seq(7, 9), seq(9, 9)},
		{"everything scrolled away", seq(20, 21), seq(20, 21)},
	}

	var e paneEmitter
	for _, step := range steps {
		got := e.next(step.capture)
		if !slices.Equal(got, step.want) {
			t.Errorf("%s: next = %q, want %q", step.name, got, step.want)
		}
	}
}

func TestTmuxRunner_MissingTmux(t *testing.T) {
	r := NewTmuxRunner("", 0, nil)
	r.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	_, err := r.Run(context.Background(), Request{TerminalID: "t1", Command: "true"}, nil)
	if !errors.Is(err, errors.ErrNoShellIntegration) {
		t.Errorf("err = %v, want ErrNoShellIntegration", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close without tmux = %v", err)
	}
}

func TestTmuxRunner_Names(t *testing.T) {
	r := NewTmuxRunner("probe", time.Second, nil)
	if got := r.SessionName("term-1"); got != "probe-term-1" {
		t.Errorf("SessionName = %q", got)
	}
	if got := r.AttachCommand("term-1"); got != "tmux -L aide attach -t probe-term-1" {
		t.Errorf("AttachCommand = %q", got)
	}
}

func TestTmuxRunner_Run(t *testing.T) {
	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not installed")
	}
	r := NewTmuxRunner("aide-test", 50*time.Millisecond, nil)
	t.Cleanup(func() { _ = r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var lines []string
	code, err := r.Run(ctx, Request{TerminalID: "t1", Cwd: t.TempDir(), Command: "echo hello; false"},
		func(l string) { lines = append(lines, l) })
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !slices.Contains(lines, "hello") {
		t.Errorf("lines = %q", lines)
	}
}
