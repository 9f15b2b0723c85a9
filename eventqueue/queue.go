// Package eventqueue implements the future-event list and the cooperative resource primitives
// the depot simulator schedules against: a time-ordered priority queue, a capacity-limited
// Resource with preemptable break windows, a predicate-filtered Store, and a position-aware
// LineStore for nose-to-tail parking.
package eventqueue

import "container/heap"

// Event is one entry in the future-event list: a time to resume at, an insertion sequence
// number to break time ties in submission order, and an opaque payload the caller interprets.
type Event struct {
	Time    float64
	seq     int64
	Payload any
	// Resume is invoked when this event is popped and due; it runs on the queue's own
	// goroutine, so it must not block.
	Resume func(payload any)
}

type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)         { *h = append(*h, x.(*Event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return v
}

// Queue is a future-event list ordered by (time, insertion sequence). It is not safe for
// concurrent use from multiple goroutines; the simulator drives it from a single driver
// goroutine and uses channels to hand control to and from task goroutines.
type Queue struct {
	h       eventHeap
	nextSeq int64
	now     float64
}

// New returns an empty Queue starting at simulation time 0.
func New() *Queue {
	q := &Queue{}
	heap.Init(&q.h)
	return q
}

// Now returns the time of the most recently popped event.
func (q *Queue) Now() float64 { return q.now }

// Schedule inserts an event to fire at t (an absolute simulation time) and returns it so the
// caller can cancel it later via Cancel.
func (q *Queue) Schedule(t float64, payload any, resume func(any)) *Event {
	e := &Event{Time: t, seq: q.nextSeq, Payload: payload, Resume: resume}
	q.nextSeq++
	heap.Push(&q.h, e)
	return e
}

// Cancel removes an event before it fires. It is a no-op if the event already fired or was
// never in this queue.
func (q *Queue) Cancel(e *Event) {
	for i, x := range q.h {
		if x == e {
			heap.Remove(&q.h, i)
			return
		}
	}
}

// Empty reports whether no events remain.
func (q *Queue) Empty() bool { return len(q.h) == 0 }

// Peek returns the next event's time without popping it.
func (q *Queue) Peek() (float64, bool) {
	if len(q.h) == 0 {
		return 0, false
	}
	return q.h[0].Time, true
}

// Step pops and resumes the single next-due event, advancing Now() to its time. It reports
// false if the queue was empty.
func (q *Queue) Step() bool {
	if len(q.h) == 0 {
		return false
	}
	e := heap.Pop(&q.h).(*Event)
	q.now = e.Time
	if e.Resume != nil {
		e.Resume(e.Payload)
	}
	return true
}

// Run drains the queue, resuming events in time order, until empty or until stopAt returns
// true for the next event's time; that event is left in the queue unfired.
func (q *Queue) Run(stopAt func(t float64) bool) {
	for {
		t, ok := q.Peek()
		if !ok {
			return
		}
		if stopAt != nil && stopAt(t) {
			return
		}
		q.Step()
	}
}
