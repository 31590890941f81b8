package proto

import "time"

// InFlight describes the single command currently awaiting a response.
type InFlight struct {
	Command Command
	SentAt  time.Time
}

// CommandQueue is an ordered FIFO of pending Commands plus the single
// in-flight correlation slot. Enqueue is idempotent: an
// equal Command already queued is not added again. Callers that can be
// invoked from outside the engine's own goroutine (a GUI calling Start/Stop
// while the tick loop runs) should guard access with internal/syncutil.
type CommandQueue struct {
	pending  []Command
	inFlight *InFlight
}

// NewCommandQueue returns an empty CommandQueue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

// Enqueue appends c unless an equal Command is already pending.
func (q *CommandQueue) Enqueue(c Command) {
	for _, existing := range q.pending {
		if existing.Equal(c) {
			return
		}
	}
	q.pending = append(q.pending, c)
}

// Len returns the number of commands waiting to be sent (not counting the
// in-flight one).
func (q *CommandQueue) Len() int {
	return len(q.pending)
}

// InFlight returns the currently in-flight command, or nil if the slot is
// empty.
func (q *CommandQueue) InFlight() *InFlight {
	return q.inFlight
}

// Clear drops the in-flight slot and empties the pending queue. Used when
// re-entering initialization on a fresh connection.
func (q *CommandQueue) Clear() {
	q.pending = nil
	q.inFlight = nil
}

// ClearInFlight empties only the in-flight slot, leaving the pending queue
// intact. Called once a response for the in-flight command has been fully
// processed.
func (q *CommandQueue) ClearInFlight() {
	q.inFlight = nil
}

// TickResult reports what a Tick decided to do.
type TickResult struct {
	TimedOut bool    // the previous in-flight command was discarded for timeout
	Dequeued Command // the command that became in-flight this tick, if any
	Sent     bool    // Dequeued is valid
}

// Tick advances the dispatcher by one step:
//  1. an empty queue is a no-op;
//  2. an occupied, not-yet-timed-out in-flight slot is a no-op (still
//     waiting for its response);
//  3. an occupied, timed-out slot is discarded;
//  4. the queue head (if any) becomes the new in-flight command.
//
// Tick never sends bytes itself — callers encode and hand TickResult.Dequeued
// to the transport.
func (q *CommandQueue) Tick(now time.Time) TickResult {
	var res TickResult

	if len(q.pending) == 0 {
		return res
	}

	if q.inFlight != nil {
		if now.Sub(q.inFlight.SentAt) < CommandTimeout {
			return res // still waiting
		}
		res.TimedOut = true
		q.inFlight = nil
	}

	next := q.pending[0]
	q.pending = q.pending[1:]
	q.inFlight = &InFlight{Command: next, SentAt: now}
	res.Sent = true
	res.Dequeued = next
	return res
}
