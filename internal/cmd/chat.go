package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/aide/internal/config"
	"github.com/Iron-Ham/aide/internal/contextkeys"
	"github.com/Iron-Ham/aide/internal/event"
	"github.com/Iron-Ham/aide/internal/session"
	"github.com/Iron-Ham/aide/internal/tui"
	"github.com/Iron-Ham/aide/internal/watch"
)

type chatOptions struct {
	mode      string
	sessionID string
	autoRun   bool
	noTUI     bool
	watch     bool
	files     []string
}

func newChatCmd() *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:   "chat <query>",
		Short: "Ask the agent and follow its plan live",
		Long: `Send a query to the sidecar agent and follow its plan as it streams.

In a terminal the plan is shown in an interactive viewer; otherwise steps and
answer text are printed line by line. Commands the agent proposes are listed,
or executed when --auto-run (session.auto_run) is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, strings.Join(args, " "), opts)
		},
	}
	cmd.Flags().StringVar(&opts.mode, "mode", "", "probe mode: explore or edit (default from session.mode)")
	cmd.Flags().StringVar(&opts.sessionID, "session-id", "", "session identifier (default: generated)")
	cmd.Flags().BoolVar(&opts.autoRun, "auto-run", false, "run proposed commands")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "print progress instead of showing the viewer")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "report workspace edits to the sidecar while the agent works")
	cmd.Flags().StringSliceVar(&opts.files, "file", nil, "open file to give the agent as context (repeatable)")
	return cmd
}

func runChat(cmd *cobra.Command, query string, opts chatOptions) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := rt.sidecarClient()
	if err != nil {
		return err
	}
	rt.serveMetrics()

	waitCtx, cancelWait := context.WithTimeout(ctx, rt.cfg.Sidecar.Timeout())
	_, err = client.WaitForHealthy(waitCtx, rt.cfg.Sidecar.HealthInterval())
	cancelWait()
	if err != nil {
		return fmt.Errorf("sidecar at %s is not ready: %w", client.BaseURL(), err)
	}

	mode := contextkeys.Mode(rt.cfg.Session.Mode)
	if opts.mode != "" {
		mode = contextkeys.Mode(opts.mode)
	}
	if !contextkeys.ProbeMode.Valid(mode) {
		return fmt.Errorf("invalid mode %q: must be one of %s", mode, strings.Join(config.ValidModes(), ", "))
	}

	repoRoot := workingDir()
	runnerOpts := session.Options{
		Agent:     client,
		Bus:       rt.bus,
		AutoRun:   opts.autoRun || rt.cfg.Session.AutoRun,
		Mode:      mode,
		RepoRoot:  repoRoot,
		OpenFiles: opts.files,
		Logger:    rt.logger,
	}
	if runnerOpts.AutoRun {
		runnerOpts.Terminals = rt.terminalManager()
	}
	if runnerOpts.Store, err = rt.snapshotStore(); err != nil {
		return err
	}

	if opts.watch || rt.cfg.Watch.Enabled {
		w, err := watch.New(watch.Options{
			Root:     repoRoot,
			Ignore:   rt.cfg.Watch.Ignore,
			Debounce: rt.cfg.Watch.Debounce(),
			Notifier: client,
			Bus:      rt.bus,
			Logger:   rt.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to watch workspace: %w", err)
		}
		w.Start()
		rt.onClose(w.Stop)
	}

	runner := session.NewRunner(runnerOpts)
	out := cmd.OutOrStdout()

	var outcome *session.Outcome
	var runErr error
	if useViewer(rt.cfg, opts.noTUI, out) {
		outcome, runErr = runWithViewer(ctx, rt, runner, opts.sessionID, query)
	} else {
		p := newProgressPrinter(out)
		id := rt.bus.SubscribeAll(p.handle)
		outcome, runErr = runner.Run(ctx, opts.sessionID, query)
		rt.bus.Unsubscribe(id)
	}

	if outcome != nil {
		printOutcome(out, outcome)
	}
	if runErr != nil {
		return runErr
	}
	if !outcome.Success {
		return fmt.Errorf("agent did not finish successfully: %s", outcome.Reason)
	}
	return nil
}

// useViewer reports whether the interactive viewer should render to out.
func useViewer(cfg *config.Config, noTUI bool, out io.Writer) bool {
	if noTUI || !cfg.TUI.Enabled {
		return false
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// runWithViewer runs the exchange while the viewer renders it. Quitting the
// viewer cancels the exchange.
func runWithViewer(ctx context.Context, rt *runtime, runner *session.Runner, sessionID, query string) (*session.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	viewer := tui.NewViewer(ctx, rt.bus, nil, tui.Options{
		MaxDescriptionLines: rt.cfg.TUI.MaxDescriptionLines,
		QuitOnFinish:        true,
	})
	viewerDone := make(chan error, 1)
	go func() {
		viewerDone <- viewer.Run()
		cancel()
	}()

	outcome, err := runner.Run(ctx, sessionID, query)
	if verr := <-viewerDone; verr != nil {
		rt.logger.Warn("viewer exited with error", "error", verr.Error())
	}
	return outcome, err
}

// progressPrinter renders bus events as plain lines.
type progressPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	midText bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out}
}

func (p *progressPrinter) handle(e event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e := e.(type) {
	case event.AgentTextEvent:
		fmt.Fprint(p.out, e.Delta)
		p.midText = !strings.HasSuffix(e.Delta, "\n")
		return
	case event.PlanStepAddedEvent:
		p.line("[step %d] %s", e.Index+1, stepHeadline(e.Title, e.Description))
	case event.PlanStepCompletedEvent:
		p.line("[step %d] done", e.Index+1)
	case event.TerminalStartedEvent:
		p.line("$ %s", e.Command)
	case event.TerminalLineEvent:
		p.line("  %s", e.Line)
	case event.TerminalCompletedEvent:
		p.line("  [exit %d]", e.ExitCode)
	}
}

func (p *progressPrinter) line(format string, args ...any) {
	if p.midText {
		fmt.Fprintln(p.out)
		p.midText = false
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

func stepHeadline(title, description string) string {
	if title != "" {
		return title
	}
	first, _, _ := strings.Cut(strings.TrimSpace(description), "\n")
	return first
}

func printOutcome(out io.Writer, o *session.Outcome) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Session %s: ", o.SessionID)
	if o.Success {
		fmt.Fprintf(out, "finished (%s)\n", o.Reason)
	} else {
		fmt.Fprintf(out, "failed (%s)\n", o.Reason)
	}

	snap := o.Snapshot
	if len(snap.Steps) > 0 {
		fmt.Fprintf(out, "Plan: %d/%d steps complete\n", snap.Completed(), len(snap.Steps))
		for _, s := range snap.Steps {
			mark := " "
			if s.Complete {
				mark = "x"
			}
			fmt.Fprintf(out, "  [%s] %d. %s\n", mark, s.Index+1, stepHeadline(s.Title, s.Description))
		}
	}

	for _, c := range o.Commands {
		if c.Result == nil {
			fmt.Fprintf(out, "Proposed command: %s\n", c.Proposal.Command)
			continue
		}
		fmt.Fprintf(out, "Ran: %s (exit %d)\n", c.Proposal.Command, c.Result.ExitCode)
	}
	if o.SnapshotPath != "" {
		fmt.Fprintf(out, "Snapshot: %s\n", o.SnapshotPath)
	}
}
