// Package executor runs delayed actions once their undo window closes.
//
// A single Scheduler goroutine ticks on an interval, claims due pending
// actions through the queue store's conditional claim, and drives each one
// through the actuator. The claim is the only pending -> executing
// transition in the system, so an action executes at most once no matter
// how many scheduler instances run; a distributed lock additionally keeps
// redundant instances from burning ticks against each other.
//
// Two maintenance passes ride along on a slower cadence: stale executing
// rows whose worker died are returned to pending, and pending rows older
// than the backlog cutoff are expired instead of executed.
package executor
