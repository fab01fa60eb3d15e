package plan

import "github.com/Iron-Ham/aide/internal/event"

// Bridge republishes the plan's notifications on bus as typed events so that
// loggers and viewers can follow the plan without holding step references.
// Steps that already exist are bridged too. The returned function detaches
// every listener the bridge registered; disposing the plan detaches them as
// well.
func Bridge(p *Plan, bus *event.Bus) (detach func()) {
	var unsubscribers []func()

	watchStep := func(s *Step) {
		unsubscribers = append(unsubscribers,
			s.OnDidChange(func() {
				bus.Publish(event.NewPlanStepChangedEvent(p.sessionID, s.id, s.index, s.description, len(s.fragments)))
			}),
			s.OnDidComplete(func() {
				bus.Publish(event.NewPlanStepCompletedEvent(p.sessionID, s.id, s.index))
			}),
		)
	}

	for _, s := range p.steps {
		watchStep(s)
	}

	unsubscribers = append(unsubscribers,
		p.OnDidAddStep(func(s *Step) {
			watchStep(s)
			bus.Publish(event.NewPlanStepAddedEvent(p.sessionID, s.id, s.index, s.title, s.description))
		}),
		p.OnDidDispose(func() {
			bus.Publish(event.NewPlanDisposedEvent(p.sessionID, len(p.steps)))
		}),
	)

	return func() {
		for _, unsubscribe := range unsubscribers {
			unsubscribe()
		}
		unsubscribers = nil
	}
}
