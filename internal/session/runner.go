// Package session drives one agent exchange end to end: it opens the
// sidecar's event stream, folds plan events into a plan.Plan, mirrors
// progress into the probe context keys, and optionally runs the commands the
// agent proposes.
package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/aide/internal/contextkeys"
	"github.com/Iron-Ham/aide/internal/errors"
	"github.com/Iron-Ham/aide/internal/event"
	"github.com/Iron-Ham/aide/internal/logging"
	"github.com/Iron-Ham/aide/internal/plan"
	"github.com/Iron-Ham/aide/internal/sidecar"
	"github.com/Iron-Ham/aide/internal/terminal"
)

// Finish reasons reported when the stream does not supply one.
const (
	ReasonCanceled      = "canceled"
	ReasonIndexMismatch = "index_mismatch"
	ReasonStreamClosed  = "stream_closed"
	ReasonAgentError    = "error"
)

// Agent opens agent event streams. *sidecar.Client implements it.
type Agent interface {
	AgentChat(ctx context.Context, req sidecar.ChatRequest) (*sidecar.Stream, error)
}

// Options configures a Runner.
type Options struct {
	Agent Agent
	Bus   *event.Bus
	Keys  *contextkeys.Service
	// Terminals runs proposed commands when AutoRun is set.
	Terminals *terminal.Manager
	AutoRun   bool
	Mode      contextkeys.Mode
	RepoRoot  string
	OpenFiles []string
	// Store, when set, receives the final plan snapshot.
	Store  *SnapshotStore
	Logger *logging.Logger
}

// CommandRun pairs a proposed command with its outcome. Result is nil when
// the command was only proposed.
type CommandRun struct {
	Proposal sidecar.CommandProposal
	Result   *terminal.Result
}

// Outcome summarizes a finished exchange.
type Outcome struct {
	SessionID    string
	Success      bool
	Reason       string
	Answer       string
	Snapshot     plan.Snapshot
	Commands     []CommandRun
	SnapshotPath string
	Duration     time.Duration
}

// Runner executes agent exchanges. A Runner handles one exchange at a time.
type Runner struct {
	opts   Options
	logger *logging.Logger
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	if opts.Bus == nil {
		opts.Bus = event.NewBus()
	}
	if opts.Keys == nil {
		opts.Keys = contextkeys.NewService(opts.Bus)
	}
	if opts.Mode == "" {
		opts.Mode = contextkeys.ModeExplore
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	return &Runner{opts: opts, logger: opts.Logger}
}

// Bus returns the bus the runner publishes on.
func (r *Runner) Bus() *event.Bus { return r.opts.Bus }

// Keys returns the context key service the runner updates.
func (r *Runner) Keys() *contextkeys.Service { return r.opts.Keys }

// exchange is the state of one Run call.
type exchange struct {
	id      string
	plan    *plan.Plan
	apply   func(plan.Update) error
	log     *logging.Logger
	answer  strings.Builder
	outcome Outcome
}

// Run sends query to the agent and consumes the resulting stream until the
// agent finishes, the stream fails, or ctx is canceled. An index mismatch in
// the plan aborts the stream and fails the exchange.
//
// The returned error is non-nil only when the exchange could not run or
// broke down (transport failure, malformed stream, index mismatch,
// cancellation). An agent that reports failure through the stream yields an
// Outcome with Success false and a nil error.
func (r *Runner) Run(ctx context.Context, sessionID, query string) (*Outcome, error) {
	if r.opts.Agent == nil {
		return nil, errors.NewValidationError("no agent configured")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	started := time.Now()

	x := &exchange{
		id:   sessionID,
		plan: plan.New(sessionID),
		log:  r.logger.WithSession(sessionID),
	}
	x.apply = x.plan.ApplyUpdate
	x.outcome.SessionID = sessionID
	detach := plan.Bridge(x.plan, r.opts.Bus)
	defer detach()

	r.begin(x)

	stream, err := r.opts.Agent.AgentChat(ctx, sidecar.ChatRequest{
		SessionID:  sessionID,
		ExchangeID: uuid.NewString(),
		Query:      query,
		Mode:       string(r.opts.Mode),
		OpenFiles:  r.opts.OpenFiles,
		RepoRoot:   r.opts.RepoRoot,
	})
	if err != nil {
		r.end(ctx, x, false, reasonFor(ctx, ReasonAgentError), started)
		return &x.outcome, err
	}
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()
	defer func() { _ = stream.Close() }()

	success, reason, runErr := r.consume(ctx, x, stream)
	r.end(ctx, x, success, reason, started)
	return &x.outcome, runErr
}

// begin clears whatever the previous exchange left in the probe keys before
// marking this one in progress.
func (r *Runner) begin(x *exchange) {
	keys := r.opts.Keys
	keys.ResetAll()
	contextkeys.MustSet(keys, contextkeys.ProbeStatus, contextkeys.StatusInProgress)
	contextkeys.MustSet(keys, contextkeys.ProbeIsActive, true)
	contextkeys.MustSet(keys, contextkeys.ProbeMode, r.opts.Mode)
	x.log.Info("agent exchange started", "mode", string(r.opts.Mode))
}

// consume reads events until a terminal condition.
func (r *Runner) consume(ctx context.Context, x *exchange, stream *sidecar.Stream) (bool, string, error) {
	for {
		ev, err := stream.Next()
		if err != nil {
			if ctx.Err() != nil {
				return false, ReasonCanceled, fmt.Errorf("%w: %v", errors.ErrCanceled, ctx.Err())
			}
			if err == io.EOF {
				return false, ReasonStreamClosed, errors.ErrStreamClosed
			}
			return false, ReasonAgentError, err
		}

		switch ev.Type {
		case sidecar.EventText:
			x.answer.WriteString(ev.Text)
			r.opts.Bus.Publish(event.NewAgentTextEvent(x.id, ev.Text))

		case sidecar.EventPlanStep:
			if err := r.applyStep(x, *ev.Step); err != nil {
				return false, ReasonIndexMismatch, err
			}

		case sidecar.EventPlanStepComplete:
			if err := x.plan.CompleteStep(ev.Step.Index); err != nil {
				x.log.WithStep(ev.Step.Index).Warn("completion for unknown step", "error", err.Error())
			}

		case sidecar.EventRunCommand:
			r.handleCommand(ctx, x, *ev.Command)

		case sidecar.EventError:
			x.log.Warn("agent reported an error", "message", ev.Text)
			reason := ev.Text
			if reason == "" {
				reason = ReasonAgentError
			}
			return false, reason, nil

		case sidecar.EventDone:
			return ev.Success, ev.Reason, nil
		}
	}
}

// applyStep folds a plan event into the plan. Only an index mismatch is
// fatal; other rejected updates are logged and skipped.
func (r *Runner) applyStep(x *exchange, u plan.Update) error {
	err := x.apply(u)
	if err == nil {
		if x.plan.Len() == 1 {
			contextkeys.MustSet(r.opts.Keys, contextkeys.ProbeHasPlan, true)
		}
		return nil
	}
	if errors.Is(err, errors.ErrIndexMismatch) {
		x.log.WithStep(u.Index).Error("plan update routed to the wrong step", "error", err.Error())
		return err
	}
	x.log.WithStep(u.Index).Warn("plan update rejected", "error", err.Error())
	return nil
}

func (r *Runner) handleCommand(ctx context.Context, x *exchange, proposal sidecar.CommandProposal) {
	run := CommandRun{Proposal: proposal}
	if !r.opts.AutoRun || r.opts.Terminals == nil {
		x.log.Info("agent proposed a command", "command", proposal.Command)
		x.outcome.Commands = append(x.outcome.Commands, run)
		return
	}

	cwd := proposal.Cwd
	if cwd == "" {
		cwd = r.opts.RepoRoot
	}
	t := r.opts.Terminals.GetOrCreate(cwd)
	res := r.opts.Terminals.Run(ctx, t, proposal.Command).Wait()
	run.Result = &res
	x.outcome.Commands = append(x.outcome.Commands, run)

	if !res.Success() {
		x.log.WithTerminal(res.TerminalID).Warn("proposed command failed",
			"command", proposal.Command, "exit_code", res.ExitCode)
	}
}

// end records the outcome, resets activity keys, persists the snapshot, and
// disposes the plan.
func (r *Runner) end(ctx context.Context, x *exchange, success bool, reason string, started time.Time) {
	x.outcome.Success = success
	x.outcome.Reason = reason
	x.outcome.Answer = x.answer.String()
	x.outcome.Duration = time.Since(started)
	x.outcome.Snapshot = x.plan.Snapshot()

	status := contextkeys.StatusFinished
	if !success {
		status = contextkeys.StatusFailed
	}
	contextkeys.MustSet(r.opts.Keys, contextkeys.ProbeStatus, status)
	contextkeys.MustSet(r.opts.Keys, contextkeys.ProbeIsActive, false)

	if r.opts.Store != nil {
		saveCtx := context.WithoutCancel(ctx)
		path, err := r.opts.Store.Save(saveCtx, x.outcome.Snapshot)
		if err != nil {
			x.log.Warn("failed to save plan snapshot", "error", err.Error())
		} else {
			x.outcome.SnapshotPath = path
		}
	}

	r.opts.Bus.Publish(event.NewAgentFinishedEvent(x.id, success, reason))
	x.plan.Dispose()
	x.log.Info("agent exchange finished",
		"success", success,
		"reason", reason,
		"steps", len(x.outcome.Snapshot.Steps),
		"duration_ms", x.outcome.Duration.Milliseconds())
}

func reasonFor(ctx context.Context, fallback string) string {
	if ctx.Err() != nil {
		return ReasonCanceled
	}
	return fallback
}
