package proto

import (
	"testing"
	"time"
)

func TestCommandQueue_EmptyTick(t *testing.T) {
	q := NewCommandQueue()
	res := q.Tick(time.Now())
	if res.Sent || res.TimedOut {
		t.Errorf("empty queue tick = %+v, want no-op", res)
	}
	if q.InFlight() != nil {
		t.Error("expected nil in-flight on empty queue")
	}
}

func TestCommandQueue_DequeuesHead(t *testing.T) {
	q := NewCommandQueue()
	c1 := ReadToken("Start")
	c2 := ReadToken("Stop")
	q.Enqueue(c1)
	q.Enqueue(c2)

	now := time.Now()
	res := q.Tick(now)
	if !res.Sent || !res.Dequeued.Equal(c1) {
		t.Fatalf("expected c1 dequeued, got %+v", res)
	}
	if q.InFlight() == nil || !q.InFlight().Command.Equal(c1) {
		t.Fatal("expected c1 in-flight")
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (c2 still pending)", q.Len())
	}

	// Invariant: at most one in-flight — a second tick before the slot
	// clears must not advance the queue.
	res2 := q.Tick(now.Add(time.Millisecond))
	if res2.Sent {
		t.Error("tick with occupied, non-expired slot sent a command")
	}
	if q.Len() != 1 {
		t.Errorf("Len() after no-op tick = %d, want 1", q.Len())
	}
}

func TestCommandQueue_TimeoutDiscardsAndAdvances(t *testing.T) {
	q := NewCommandQueue()
	c1 := ReadToken("Start")
	c2 := ReadToken("Stop")
	q.Enqueue(c1)
	q.Enqueue(c2)

	start := time.Now()
	q.Tick(start)
	if !q.InFlight().Command.Equal(c1) {
		t.Fatal("expected c1 in-flight")
	}

	res := q.Tick(start.Add(CommandTimeout + time.Millisecond))
	if !res.TimedOut {
		t.Error("expected TimedOut=true past CommandTimeout")
	}
	if !res.Sent || !res.Dequeued.Equal(c2) {
		t.Fatalf("expected c2 dequeued after timeout, got %+v", res)
	}
}

func TestCommandQueue_ClearInFlight(t *testing.T) {
	q := NewCommandQueue()
	c1 := ReadToken("Start")
	q.Enqueue(c1)
	q.Tick(time.Now())
	if q.InFlight() == nil {
		t.Fatal("expected in-flight after tick")
	}
	q.ClearInFlight()
	if q.InFlight() != nil {
		t.Error("expected nil in-flight after ClearInFlight")
	}
}

func TestCommandQueue_Clear(t *testing.T) {
	q := NewCommandQueue()
	q.Enqueue(ReadToken("Start"))
	q.Enqueue(ReadToken("Stop"))
	q.Tick(time.Now())
	q.Clear()
	if q.Len() != 0 || q.InFlight() != nil {
		t.Error("expected queue fully cleared")
	}
}

// S6 — enqueueing an equal Command already pending is a no-op (de-dup).
func TestCommandQueue_EnqueueDeduplicates(t *testing.T) {
	q := NewCommandQueue()
	q.Enqueue(CommandU16("Start", 1))
	q.Enqueue(CommandU16("Start", 1))
	q.Enqueue(CommandU16("Start", 1))
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after duplicate enqueues", q.Len())
	}

	// A Command that differs only in value is NOT a duplicate.
	q.Enqueue(CommandU16("Start", 2))
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2 after differing-value enqueue", q.Len())
	}
}

func TestCommandQueue_EnqueueDoesNotDeduplicateAgainstInFlight(t *testing.T) {
	q := NewCommandQueue()
	c := ReadToken("Start")
	q.Enqueue(c)
	q.Tick(time.Now())

	// c is now in-flight, not pending; re-enqueueing it should queue a
	// fresh attempt since dedup only inspects the pending slice.
	q.Enqueue(c)
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
}
