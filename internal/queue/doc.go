// Package queue implements the delayed, cancellable action queue.
//
// Every consequential side effect enters as a pending action with an undo
// deadline. Until the deadline the owner can cancel (-> undone); after it
// the executor claims the action atomically and hands it to the actuator.
// pending is the only state a transition may leave; executing is the claim
// lease; everything else is terminal.
//
// The persisted steward_actions table is the single source of truth.
// Concurrent executor workers coordinate exclusively through the atomic
// claim (CTE + FOR UPDATE SKIP LOCKED); nothing else in the queue needs
// mutual exclusion.
package queue
