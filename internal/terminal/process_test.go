package terminal

import (
	"strings"
	"testing"
	"time"
)

func TestProcess_Continue(t *testing.T) {
	p := newProcess("term-1", "serve", 1024, 0, 0, nil)
	p.appendLine("listening")

	p.Continue()
	p.Continue()
	res := p.Wait()
	if !res.Continued || res.ExitCode != -1 || res.Output != "listening\n" {
		t.Errorf("Wait after Continue = %+v", res)
	}

	p.appendLine("request")
	if out := p.UnretrievedOutput(); out != "listening\nrequest\n" {
		t.Errorf("UnretrievedOutput = %q", out)
	}

	p.finish(0, nil)
	p.finish(3, nil)
	if res := p.Wait(); res.Continued || res.ExitCode != 0 {
		t.Errorf("Wait after exit = %+v", res)
	}
}

func TestProcess_IsHot(t *testing.T) {
	now := time.Unix(0, 0)
	p := newProcess("t", "c", 1024, 2*time.Second, 15*time.Second, func() time.Time { return now })

	if !p.IsHot() {
		t.Error("a fresh process is hot")
	}
	now = now.Add(3 * time.Second)
	if p.IsHot() {
		t.Error("no output for 3s should be cold")
	}
	p.appendLine("output")
	if !p.IsHot() {
		t.Error("new output should make the process hot again")
	}
	p.finish(0, nil)
	if p.IsHot() {
		t.Error("an exited process is never hot")
	}
}

func TestHotTracker(t *testing.T) {
	start := time.Unix(0, 0)
	tests := []struct {
		name  string
		lines []string
		after time.Duration
		want  bool
	}{
		{"plain output within window", []string{"hello"}, time.Second, true},
		{"plain output expired", []string{"hello"}, 3 * time.Second, false},
		{"compiling extends", []string{"Compiling main.go"}, 10 * time.Second, true},
		{"compiling expires", []string{"Bundling assets"}, 16 * time.Second, false},
		{"nullifier ends compiling", []string{"Building...", "Build complete"}, 5 * time.Second, false},
		{"nullifier wins on same line", []string{"starting server failed"}, 5 * time.Second, false},
		{"substring does not match", []string{"pending rebuilding"}, 5 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHotTracker(DefaultHotWindow, DefaultCompilingHotWindow, start)
			for _, l := range tt.lines {
				h.observe(l, start)
			}
			if got := h.hot(start.Add(tt.after)); got != tt.want {
				t.Errorf("hot = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTailBuffer(t *testing.T) {
	b := tailBuffer{max: 10}
	b.writeLine("aaaa")
	b.writeLine("bbbb")
	b.writeLine("cccc")
	if got := b.String(); got != "bbbb\ncccc\n" {
		t.Errorf("String() = %q", got)
	}

	b.writeLine(strings.Repeat("x", 50))
	if got := b.String(); got != strings.Repeat("x", 50)+"\n" {
		t.Errorf("oversized line should be kept alone, got %q", got)
	}

	b.reset()
	if b.String() != "" {
		t.Error("reset should empty the buffer")
	}
}
