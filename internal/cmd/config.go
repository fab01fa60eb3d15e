package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/aide/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View aide configuration",
		RunE:  runConfigShow,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show current configuration",
			RunE:  runConfigShow,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show the config file path",
			RunE:  runConfigPath,
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create a config file with the default settings",
			RunE:  runConfigInit,
		},
	)
	return cmd
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	settings := viper.AllSettings()
	delete(settings, "config")
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "Active config: %s\n", used)
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_SIDECAR_URL)\n", config.EnvPrefix, config.EnvPrefix)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}
	if err := os.MkdirAll(config.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(defaultSettings())
	if err != nil {
		return err
	}
	if err := os.WriteFile(configFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

// defaultSettings returns the defaults keyed the same way as the config file.
func defaultSettings() map[string]any {
	d := config.Default()
	return map[string]any{
		"sidecar": map[string]any{
			"url":                d.Sidecar.URL,
			"timeout_seconds":    d.Sidecar.TimeoutSeconds,
			"cache_size":         d.Sidecar.CacheSize,
			"concurrency":        d.Sidecar.Concurrency,
			"health_interval_ms": d.Sidecar.HealthIntervalMs,
		},
		"terminal": map[string]any{
			"backend":                 d.Terminal.Backend,
			"shell":                   d.Terminal.Shell,
			"tmux_session":            d.Terminal.TmuxSession,
			"capture_interval_ms":     d.Terminal.CaptureIntervalMs,
			"hot_window_ms":           d.Terminal.HotWindowMs,
			"compiling_hot_window_ms": d.Terminal.CompilingHotWindowMs,
			"max_output_bytes":        d.Terminal.MaxOutputBytes,
		},
		"session": map[string]any{
			"mode":         d.Session.Mode,
			"auto_run":     d.Session.AutoRun,
			"snapshot_dir": d.Session.SnapshotDir,
		},
		"watch": map[string]any{
			"enabled":     d.Watch.Enabled,
			"ignore":      d.Watch.Ignore,
			"debounce_ms": d.Watch.DebounceMs,
		},
		"tui": map[string]any{
			"enabled":               d.TUI.Enabled,
			"max_description_lines": d.TUI.MaxDescriptionLines,
		},
		"logging": map[string]any{
			"enabled":     d.Logging.Enabled,
			"level":       d.Logging.Level,
			"dir":         d.Logging.Dir,
			"max_size_mb": d.Logging.MaxSizeMB,
			"max_backups": d.Logging.MaxBackups,
		},
		"metrics": map[string]any{
			"addr": d.Metrics.Addr,
		},
	}
}
