package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "sidecar.url")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidBackends returns the list of valid terminal backends
func ValidBackends() []string {
	return []string{BackendPTY, BackendTmux}
}

// ValidModes returns the list of valid probe modes
func ValidModes() []string {
	return []string{"explore", "edit"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	errors = append(errors, c.validateSidecar()...)
	errors = append(errors, c.validateTerminal()...)
	errors = append(errors, c.validateSession()...)
	errors = append(errors, c.validateWatch()...)
	errors = append(errors, c.validateTUI()...)
	errors = append(errors, c.validateLogging()...)
	return errors
}

func (c *Config) validateSidecar() []ValidationError {
	var errors []ValidationError

	u, err := url.Parse(c.Sidecar.URL)
	if c.Sidecar.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "sidecar.url",
			Value:   c.Sidecar.URL,
			Message: "must be an absolute http or https URL",
		})
	}

	if c.Sidecar.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "sidecar.timeout_seconds",
			Value:   c.Sidecar.TimeoutSeconds,
			Message: "must be positive",
		})
	}

	if c.Sidecar.CacheSize < 0 {
		errors = append(errors, ValidationError{
			Field:   "sidecar.cache_size",
			Value:   c.Sidecar.CacheSize,
			Message: "must be non-negative",
		})
	}

	const maxConcurrency = 64
	if c.Sidecar.Concurrency < 1 || c.Sidecar.Concurrency > maxConcurrency {
		errors = append(errors, ValidationError{
			Field:   "sidecar.concurrency",
			Value:   c.Sidecar.Concurrency,
			Message: fmt.Sprintf("must be between 1 and %d", maxConcurrency),
		})
	}

	if c.Sidecar.HealthIntervalMs < 10 {
		errors = append(errors, ValidationError{
			Field:   "sidecar.health_interval_ms",
			Value:   c.Sidecar.HealthIntervalMs,
			Message: "must be at least 10ms",
		})
	}

	return errors
}

func (c *Config) validateTerminal() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidBackends(), c.Terminal.Backend) {
		errors = append(errors, ValidationError{
			Field:   "terminal.backend",
			Value:   c.Terminal.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}

	if c.Terminal.Backend == BackendTmux && c.Terminal.TmuxSession == "" {
		errors = append(errors, ValidationError{
			Field:   "terminal.tmux_session",
			Value:   c.Terminal.TmuxSession,
			Message: "is required for the tmux backend",
		})
	}

	if c.Terminal.CaptureIntervalMs < 10 {
		errors = append(errors, ValidationError{
			Field:   "terminal.capture_interval_ms",
			Value:   c.Terminal.CaptureIntervalMs,
			Message: "must be at least 10ms",
		})
	}

	if c.Terminal.HotWindowMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "terminal.hot_window_ms",
			Value:   c.Terminal.HotWindowMs,
			Message: "must be positive",
		})
	}

	if c.Terminal.CompilingHotWindowMs < c.Terminal.HotWindowMs {
		errors = append(errors, ValidationError{
			Field:   "terminal.compiling_hot_window_ms",
			Value:   c.Terminal.CompilingHotWindowMs,
			Message: "must not be shorter than terminal.hot_window_ms",
		})
	}

	if c.Terminal.MaxOutputBytes < 1024 {
		errors = append(errors, ValidationError{
			Field:   "terminal.max_output_bytes",
			Value:   c.Terminal.MaxOutputBytes,
			Message: "must be at least 1024",
		})
	}

	return errors
}

func (c *Config) validateSession() []ValidationError {
	if slices.Contains(ValidModes(), c.Session.Mode) {
		return nil
	}
	return []ValidationError{{
		Field:   "session.mode",
		Value:   c.Session.Mode,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidModes(), ", ")),
	}}
}

func (c *Config) validateWatch() []ValidationError {
	var errors []ValidationError

	if c.Watch.DebounceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "watch.debounce_ms",
			Value:   c.Watch.DebounceMs,
			Message: "must be non-negative",
		})
	}

	for i, pattern := range c.Watch.Ignore {
		field := fmt.Sprintf("watch.ignore[%d]", i)
		if strings.TrimSpace(pattern) == "" || strings.ContainsRune(pattern, '\x00') {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   pattern,
				Message: "must be a non-empty pattern",
			})
			continue
		}
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	return errors
}

func (c *Config) validateTUI() []ValidationError {
	const maxLines = 1000
	if c.TUI.MaxDescriptionLines < 0 || c.TUI.MaxDescriptionLines > maxLines {
		return []ValidationError{{
			Field:   "tui.max_description_lines",
			Value:   c.TUI.MaxDescriptionLines,
			Message: fmt.Sprintf("must be between 0 and %d", maxLines),
		}}
	}
	return nil
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
