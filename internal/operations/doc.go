// Package operations runs report steps and turns their results into
// outcomes the dashboard and CLI can show.
//
// Core components:
//
// Step: one unit of work. Execute receives the month offset and returns the
// artifact paths it wrote; an empty slice means nothing was generated.
//
// Registry: holds steps in registration order. RunAll walks that order.
//
// Runner: executes one step (RunOne) or all of them (RunAll). RunOne never
// returns an error; failures are classified into a FAILED Outcome with a
// user-facing message. RunAll stops at the first failing step and returns a
// *StepError naming it.
//
// Example usage:
//
//	registry := operations.NewRegistry()
//	for _, s := range reports.Steps(env) {
//		registry.Register(s)
//	}
//	runner := operations.NewRunner(registry, logger, nil, metrics)
//	outcome := runner.RunOne(ctx, "supply", 1)
package operations
