// Package event provides the notification plumbing used across aide.
//
// Two mechanisms are offered:
//
//   - [Emitter]: a typed, per-entity channel (e.g. "this step changed", "this
//     plan added a step"). Listeners are registered with Subscribe, which
//     returns an unsubscribe handle. Delivery is synchronous and unlocked;
//     an Emitter belongs to exactly one owner.
//   - [Bus]: a process-wide, thread-safe dispatcher for typed [Event] values.
//     Components publish here so loggers, the plan viewer and the CLI can
//     observe them without depending on each other.
//
// Both recover from panicking handlers so one bad listener cannot starve the
// others.
//
// # Basic Usage
//
//	changed := event.NewEmitter[struct{}]("step.changed")
//	unsubscribe := changed.Subscribe(func(struct{}) { redraw() })
//	changed.Fire(struct{}{})
//	unsubscribe()
//
//	bus := event.NewBus()
//	bus.Subscribe(event.TypePlanStepAdded, func(e event.Event) {
//	    added := e.(event.PlanStepAddedEvent)
//	    log.Printf("step %d added", added.Index)
//	})
//
// # Event Type Naming Convention
//
// Bus event types follow the pattern "category.action":
//   - plan.step_added, plan.step_changed, plan.step_completed, plan.disposed
//   - terminal.started, terminal.line, terminal.completed
//   - contextkey.changed
//   - agent.text, agent.finished
//   - workspace.file_changed
package event
