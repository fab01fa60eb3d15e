package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty url", func(c *Config) { c.Sidecar.URL = "" }, "sidecar.url"},
		{"relative url", func(c *Config) { c.Sidecar.URL = "/api" }, "sidecar.url"},
		{"ftp url", func(c *Config) { c.Sidecar.URL = "ftp://host" }, "sidecar.url"},
		{"zero timeout", func(c *Config) { c.Sidecar.TimeoutSeconds = 0 }, "sidecar.timeout_seconds"},
		{"negative cache", func(c *Config) { c.Sidecar.CacheSize = -1 }, "sidecar.cache_size"},
		{"zero concurrency", func(c *Config) { c.Sidecar.Concurrency = 0 }, "sidecar.concurrency"},
		{"huge concurrency", func(c *Config) { c.Sidecar.Concurrency = 1000 }, "sidecar.concurrency"},
		{"fast health poll", func(c *Config) { c.Sidecar.HealthIntervalMs = 1 }, "sidecar.health_interval_ms"},
		{"bad backend", func(c *Config) { c.Terminal.Backend = "conpty" }, "terminal.backend"},
		{"tmux without session", func(c *Config) {
			c.Terminal.Backend = BackendTmux
			c.Terminal.TmuxSession = ""
		}, "terminal.tmux_session"},
		{"fast capture", func(c *Config) { c.Terminal.CaptureIntervalMs = 1 }, "terminal.capture_interval_ms"},
		{"zero hot window", func(c *Config) { c.Terminal.HotWindowMs = 0 }, "terminal.hot_window_ms"},
		{"short compiling window", func(c *Config) { c.Terminal.CompilingHotWindowMs = 1000 }, "terminal.compiling_hot_window_ms"},
		{"tiny output buffer", func(c *Config) { c.Terminal.MaxOutputBytes = 10 }, "terminal.max_output_bytes"},
		{"bad mode", func(c *Config) { c.Session.Mode = "chat" }, "session.mode"},
		{"negative debounce", func(c *Config) { c.Watch.DebounceMs = -1 }, "watch.debounce_ms"},
		{"blank ignore", func(c *Config) { c.Watch.Ignore = []string{".git", " "} }, "watch.ignore[1]"},
		{"bad ignore glob", func(c *Config) { c.Watch.Ignore = []string{"[unclosed"} }, "watch.ignore[0]"},
		{"tui lines", func(c *Config) { c.TUI.MaxDescriptionLines = -2 }, "tui.max_description_lines"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"zero log size", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb"},
		{"huge log size", func(c *Config) { c.Logging.MaxSizeMB = 5000 }, "logging.max_size_mb"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), ValidationErrors(errs))
			}
			if errs[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.field)
			}
		})
	}
}

func TestValidate_EmptyLevelAllowed(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = ""
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", ValidationErrors(errs))
	}
}

func TestValidationErrors_Error(t *testing.T) {
	if got := ValidationErrors(nil).Error(); got != "" {
		t.Errorf("empty Error() = %q", got)
	}

	one := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	if got := one.Error(); got != "a: bad (got: 1)" {
		t.Errorf("single Error() = %q", got)
	}

	two := append(one, ValidationError{Field: "b", Value: "x", Message: "worse"})
	got := two.Error()
	if !strings.HasPrefix(got, "2 validation errors:") || !strings.Contains(got, "2. b: worse (got: x)") {
		t.Errorf("multi Error() = %q", got)
	}
}
