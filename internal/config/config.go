package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. AIDE_SIDECAR_URL.
const EnvPrefix = "AIDE"

// Config represents the complete aide configuration
type Config struct {
	Sidecar  SidecarConfig  `mapstructure:"sidecar"`
	Terminal TerminalConfig `mapstructure:"terminal"`
	Session  SessionConfig  `mapstructure:"session"`
	Watch    WatchConfig    `mapstructure:"watch"`
	TUI      TUIConfig      `mapstructure:"tui"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// SidecarConfig controls the connection to the sidecar backend
type SidecarConfig struct {
	// URL is the base URL of the sidecar (default: http://127.0.0.1:42424)
	URL string `mapstructure:"url"`
	// TimeoutSeconds bounds non-streaming requests. Streams are bounded only
	// by the caller's context.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// CacheSize is the number of symbol lookups kept in memory (0 disables the cache)
	CacheSize int `mapstructure:"cache_size"`
	// Concurrency limits parallel requests for batch lookups
	Concurrency int `mapstructure:"concurrency"`
	// HealthIntervalMs is the polling interval while waiting for the sidecar to come up
	HealthIntervalMs int `mapstructure:"health_interval_ms"`
}

// TerminalConfig controls how shell commands are executed
type TerminalConfig struct {
	// Backend is "pty" (default) or "tmux"
	Backend string `mapstructure:"backend"`
	// Shell runs each command as <shell> -c <command>. Empty uses $SHELL, then /bin/sh.
	Shell string `mapstructure:"shell"`
	// TmuxSession is the detached tmux session used by the tmux backend
	TmuxSession string `mapstructure:"tmux_session"`
	// CaptureIntervalMs is how often the tmux backend polls pane output
	CaptureIntervalMs int `mapstructure:"capture_interval_ms"`
	// HotWindowMs is how long a process counts as hot after its last output
	HotWindowMs int `mapstructure:"hot_window_ms"`
	// CompilingHotWindowMs replaces HotWindowMs while the output looks like a build in progress
	CompilingHotWindowMs int `mapstructure:"compiling_hot_window_ms"`
	// MaxOutputBytes caps the unretrieved output buffered per process
	MaxOutputBytes int `mapstructure:"max_output_bytes"`
}

// SessionConfig controls agent sessions
type SessionConfig struct {
	// Mode is the probe mode reported through context keys: "explore" or "edit"
	Mode string `mapstructure:"mode"`
	// AutoRun executes commands the agent proposes instead of only reporting them
	AutoRun bool `mapstructure:"auto_run"`
	// SnapshotDir, when set, receives a YAML plan snapshot at the end of each session
	SnapshotDir string `mapstructure:"snapshot_dir"`
}

// WatchConfig controls the workspace watcher
type WatchConfig struct {
	// Enabled starts the watcher alongside chat sessions
	Enabled bool `mapstructure:"enabled"`
	// Ignore lists glob patterns, matched against base names and root-relative paths, that are never reported
	Ignore []string `mapstructure:"ignore"`
	// DebounceMs coalesces bursts of events for the same file
	DebounceMs int `mapstructure:"debounce_ms"`
}

// TUIConfig controls the plan viewer
type TUIConfig struct {
	// Enabled shows the interactive viewer when stdout is a terminal
	Enabled bool `mapstructure:"enabled"`
	// MaxDescriptionLines truncates each step description (0 = no limit)
	MaxDescriptionLines int `mapstructure:"max_description_lines"`
}

// LoggingConfig controls debug logging
type LoggingConfig struct {
	// Enabled writes logs to Dir. When false, only warnings and errors go to stderr.
	Enabled bool `mapstructure:"enabled"`
	// Level is one of ValidLogLevels
	Level string `mapstructure:"level"`
	// Dir holds aide.log. Empty means <config dir>/logs.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB rotates the log file once it exceeds this size
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep
	MaxBackups int `mapstructure:"max_backups"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics, e.g. ":9464". Empty disables it.
	Addr string `mapstructure:"addr"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Sidecar: SidecarConfig{
			URL:              "http://127.0.0.1:42424",
			TimeoutSeconds:   30,
			CacheSize:        256,
			Concurrency:      4,
			HealthIntervalMs: 500,
		},
		Terminal: TerminalConfig{
			Backend:              BackendPTY,
			Shell:                "",
			TmuxSession:          "aide",
			CaptureIntervalMs:    100,
			HotWindowMs:          2000,
			CompilingHotWindowMs: 15000,
			MaxOutputBytes:       1 << 20,
		},
		Session: SessionConfig{
			Mode:    "explore",
			AutoRun: false,
		},
		Watch: WatchConfig{
			Enabled:    false,
			Ignore:     []string{".git", "node_modules", "vendor", ".idea", ".vscode", "*.swp", "*~"},
			DebounceMs: 50,
		},
		TUI: TUIConfig{
			Enabled:             true,
			MaxDescriptionLines: 6,
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Terminal backends
const (
	BackendPTY  = "pty"
	BackendTmux = "tmux"
)

// Timeout returns the sidecar request timeout as a Duration
func (c *SidecarConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// HealthInterval returns the health polling interval as a Duration
func (c *SidecarConfig) HealthInterval() time.Duration {
	return time.Duration(c.HealthIntervalMs) * time.Millisecond
}

// CaptureInterval returns the tmux polling interval as a Duration
func (c *TerminalConfig) CaptureInterval() time.Duration {
	return time.Duration(c.CaptureIntervalMs) * time.Millisecond
}

// HotWindow returns the default hot window as a Duration
func (c *TerminalConfig) HotWindow() time.Duration {
	return time.Duration(c.HotWindowMs) * time.Millisecond
}

// CompilingHotWindow returns the extended hot window as a Duration
func (c *TerminalConfig) CompilingHotWindow() time.Duration {
	return time.Duration(c.CompilingHotWindowMs) * time.Millisecond
}

// ResolveShell returns the configured shell, falling back to $SHELL and then /bin/sh.
func (c *TerminalConfig) ResolveShell() string {
	if c.Shell != "" {
		return c.Shell
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// Debounce returns the watcher debounce as a Duration
func (c *WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// ResolveDir returns the log directory, defaulting to <config dir>/logs.
func (c *LoggingConfig) ResolveDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	return filepath.Join(ConfigDir(), "logs")
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Sidecar defaults
	viper.SetDefault("sidecar.url", defaults.Sidecar.URL)
	viper.SetDefault("sidecar.timeout_seconds", defaults.Sidecar.TimeoutSeconds)
	viper.SetDefault("sidecar.cache_size", defaults.Sidecar.CacheSize)
	viper.SetDefault("sidecar.concurrency", defaults.Sidecar.Concurrency)
	viper.SetDefault("sidecar.health_interval_ms", defaults.Sidecar.HealthIntervalMs)

	// Terminal defaults
	viper.SetDefault("terminal.backend", defaults.Terminal.Backend)
	viper.SetDefault("terminal.shell", defaults.Terminal.Shell)
	viper.SetDefault("terminal.tmux_session", defaults.Terminal.TmuxSession)
	viper.SetDefault("terminal.capture_interval_ms", defaults.Terminal.CaptureIntervalMs)
	viper.SetDefault("terminal.hot_window_ms", defaults.Terminal.HotWindowMs)
	viper.SetDefault("terminal.compiling_hot_window_ms", defaults.Terminal.CompilingHotWindowMs)
	viper.SetDefault("terminal.max_output_bytes", defaults.Terminal.MaxOutputBytes)

	// Session defaults
	viper.SetDefault("session.mode", defaults.Session.Mode)
	viper.SetDefault("session.auto_run", defaults.Session.AutoRun)
	viper.SetDefault("session.snapshot_dir", defaults.Session.SnapshotDir)

	// Watch defaults
	viper.SetDefault("watch.enabled", defaults.Watch.Enabled)
	viper.SetDefault("watch.ignore", defaults.Watch.Ignore)
	viper.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)

	// TUI defaults
	viper.SetDefault("tui.enabled", defaults.TUI.Enabled)
	viper.SetDefault("tui.max_description_lines", defaults.TUI.MaxDescriptionLines)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Metrics defaults
	viper.SetDefault("metrics.addr", defaults.Metrics.Addr)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "aide")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aide"
	}
	return filepath.Join(home, ".config", "aide")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
