package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Sidecar.URL != "http://127.0.0.1:42424" {
		t.Errorf("Sidecar.URL = %q", cfg.Sidecar.URL)
	}
	if cfg.Sidecar.Concurrency != 4 {
		t.Errorf("Sidecar.Concurrency = %d, want 4", cfg.Sidecar.Concurrency)
	}
	if cfg.Terminal.Backend != BackendPTY {
		t.Errorf("Terminal.Backend = %q, want %q", cfg.Terminal.Backend, BackendPTY)
	}
	if cfg.Terminal.HotWindow() != 2*time.Second {
		t.Errorf("HotWindow() = %v, want 2s", cfg.Terminal.HotWindow())
	}
	if cfg.Terminal.CompilingHotWindow() != 15*time.Second {
		t.Errorf("CompilingHotWindow() = %v, want 15s", cfg.Terminal.CompilingHotWindow())
	}
	if cfg.Watch.Debounce() != 50*time.Millisecond {
		t.Errorf("Debounce() = %v, want 50ms", cfg.Watch.Debounce())
	}
	if cfg.Session.Mode != "explore" || cfg.Session.AutoRun {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be false by default")
	}

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("defaults should validate, got %v", ValidationErrors(errs))
	}
}

func TestDurations(t *testing.T) {
	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"sidecar timeout", (&SidecarConfig{TimeoutSeconds: 5}).Timeout(), 5 * time.Second},
		{"health interval", (&SidecarConfig{HealthIntervalMs: 250}).HealthInterval(), 250 * time.Millisecond},
		{"capture interval", (&TerminalConfig{CaptureIntervalMs: 100}).CaptureInterval(), 100 * time.Millisecond},
		{"zero", (&TerminalConfig{}).HotWindow(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestResolveShell(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		c := TerminalConfig{Shell: "/bin/zsh"}
		if got := c.ResolveShell(); got != "/bin/zsh" {
			t.Errorf("ResolveShell() = %q", got)
		}
	})
	t.Run("from environment", func(t *testing.T) {
		t.Setenv("SHELL", "/usr/bin/fish")
		c := TerminalConfig{}
		if got := c.ResolveShell(); got != "/usr/bin/fish" {
			t.Errorf("ResolveShell() = %q", got)
		}
	})
	t.Run("fallback", func(t *testing.T) {
		t.Setenv("SHELL", "")
		c := TerminalConfig{}
		if got := c.ResolveShell(); got != "/bin/sh" {
			t.Errorf("ResolveShell() = %q", got)
		}
	})
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got := ConfigDir(); got != "/custom/config/aide" {
			t.Errorf("ConfigDir() = %q", got)
		}
		if got := ConfigFile(); got != "/custom/config/aide/config.yaml" {
			t.Errorf("ConfigFile() = %q", got)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", home)
		want := filepath.Join(home, ".config", "aide")
		if got := ConfigDir(); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestLoggingResolveDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := (&LoggingConfig{}).ResolveDir(); got != "/xdg/aide/logs" {
		t.Errorf("ResolveDir() = %q", got)
	}
	if got := (&LoggingConfig{Dir: "/tmp/x"}).ResolveDir(); got != "/tmp/x" {
		t.Errorf("ResolveDir() = %q", got)
	}
}

func TestLoad(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Reset()
	SetDefaults()
	viper.Set("terminal.backend", "tmux")
	viper.Set("sidecar.url", "http://localhost:9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Terminal.Backend != "tmux" || cfg.Sidecar.URL != "http://localhost:9000" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Watch.DebounceMs != 50 {
		t.Errorf("defaults not applied: DebounceMs = %d", cfg.Watch.DebounceMs)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Reset()
	SetDefaults()
	viper.Set("terminal.backend", "conpty")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected validation error")
	}

	cfg := Get()
	if cfg.Terminal.Backend != BackendPTY {
		t.Errorf("Get() should fall back to defaults, got backend %q", cfg.Terminal.Backend)
	}
}
