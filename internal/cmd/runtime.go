package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/aide/internal/config"
	"github.com/Iron-Ham/aide/internal/event"
	"github.com/Iron-Ham/aide/internal/logging"
	"github.com/Iron-Ham/aide/internal/session"
	"github.com/Iron-Ham/aide/internal/sidecar"
	"github.com/Iron-Ham/aide/internal/terminal"
)

// runtime holds the shared dependencies a command builds from config.
type runtime struct {
	cfg      *config.Config
	logger   *logging.Logger
	bus      *event.Bus
	registry *prometheus.Registry
	metrics  *sidecar.Metrics
	closers  []func()
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	return &runtime{
		cfg:      cfg,
		logger:   createLogger(cmd, cfg),
		bus:      event.NewBus(),
		registry: reg,
		metrics:  sidecar.NewMetrics(reg),
	}, nil
}

// createLogger writes to the log directory when logging is enabled and
// otherwise reports only warnings and errors on stderr. Logger creation
// failures never stop a command.
func createLogger(cmd *cobra.Command, cfg *config.Config) *logging.Logger {
	opts := logging.Options{
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Stderr:     cmd.ErrOrStderr(),
	}
	if cfg.Logging.Enabled {
		opts.Dir = cfg.Logging.ResolveDir()
	} else {
		opts.Level = logging.LevelWarn
	}

	logger, err := logging.NewLogger(opts)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to create logger: %v\n", err)
		return logging.NopLogger()
	}
	return logger
}

func (rt *runtime) onClose(fn func()) {
	rt.closers = append(rt.closers, fn)
}

// Close releases everything the runtime created, newest first.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
	_ = rt.logger.Close()
}

func (rt *runtime) sidecarClient() (*sidecar.Client, error) {
	return sidecar.NewClient(sidecar.Config{
		BaseURL:     rt.cfg.Sidecar.URL,
		Timeout:     rt.cfg.Sidecar.Timeout(),
		CacheSize:   rt.cfg.Sidecar.CacheSize,
		Concurrency: rt.cfg.Sidecar.Concurrency,
		Metrics:     rt.metrics,
		Logger:      rt.logger,
	})
}

// terminalManager builds a manager on the configured backend. The manager is
// disposed when the runtime closes.
func (rt *runtime) terminalManager() *terminal.Manager {
	tc := rt.cfg.Terminal
	var runner terminal.Runner
	switch tc.Backend {
	case config.BackendTmux:
		runner = terminal.NewTmuxRunner(tc.TmuxSession, tc.CaptureInterval(), rt.logger)
	default:
		runner = terminal.NewPTYRunner(tc.ResolveShell())
	}

	mgr := terminal.NewManager(terminal.Options{
		Runner:             runner,
		Bus:                rt.bus,
		Logger:             rt.logger,
		HotWindow:          tc.HotWindow(),
		CompilingHotWindow: tc.CompilingHotWindow(),
		MaxOutputBytes:     tc.MaxOutputBytes,
	})
	rt.onClose(func() {
		if err := mgr.DisposeAll(); err != nil {
			rt.logger.Warn("failed to dispose terminals", "error", err.Error())
		}
	})
	return mgr
}

// snapshotStore returns nil when no snapshot directory is configured.
func (rt *runtime) snapshotStore() (*session.SnapshotStore, error) {
	if rt.cfg.Session.SnapshotDir == "" {
		return nil, nil
	}
	return session.NewSnapshotStore(rt.cfg.Session.SnapshotDir)
}

// serveMetrics exposes the registry on metrics.addr until the runtime
// closes. It does nothing when no address is configured.
func (rt *runtime) serveMetrics() {
	addr := rt.cfg.Metrics.Addr
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{Registry: rt.registry}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rt.logger.Error("metrics server failed", "addr", addr, "error", err.Error())
		}
	}()
	rt.logger.Info("serving metrics", "addr", addr)

	rt.onClose(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
