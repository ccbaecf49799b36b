// Package policy implements the automation rule engine: condition matching
// against normalized event data, per-policy execution constraints (daily
// rate limits and cooldowns), and priority-ordered policy selection.
//
// The engine is read-only over policies and execution history; the only
// writes it causes are the actions it proposes for the queue. Evaluation is
// a pure computation given its inputs, so it is safely parallelizable per
// owner.
package policy
