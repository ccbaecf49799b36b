// Package guard implements the two owner-level overrides that sit in front
// of policy evaluation: the emergency pause (a kill switch on new
// autonomous firing) and the VIP list (senders whose events bypass
// ordinary policy matching entirely).
//
// Pausing stops new policy firing only; actions already queued keep their
// own schedule. The VIP notification path deliberately ignores the pause
// gate: a paused assistant still tells you the CEO wrote.
package guard
