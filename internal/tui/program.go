package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/aide/internal/errors"
	"github.com/Iron-Ham/aide/internal/event"
)

// Viewer runs the plan viewer against a bus.
type Viewer struct {
	program *tea.Program
	bus     *event.Bus
	subID   string
}

// NewViewer creates a viewer that renders to out and follows every event
// published on bus. Pass a nil out to use stdout.
func NewViewer(ctx context.Context, bus *event.Bus, out io.Writer, opts Options) *Viewer {
	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if out != nil {
		progOpts = append(progOpts, tea.WithOutput(out), tea.WithInput(nil))
	}
	v := &Viewer{
		program: tea.NewProgram(NewModel(opts), progOpts...),
		bus:     bus,
	}
	v.subID = bus.SubscribeAll(func(e event.Event) {
		v.program.Send(eventMsg{e})
	})
	return v
}

// Run blocks until the viewer exits, then detaches from the bus.
func (v *Viewer) Run() error {
	defer v.bus.Unsubscribe(v.subID)
	_, err := v.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Quit asks the viewer to exit.
func (v *Viewer) Quit() {
	v.program.Quit()
}
