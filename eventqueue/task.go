package eventqueue

// Task is a cooperatively scheduled unit of simulation work, running in its own goroutine but
// never executing concurrently with any other Task or with the Queue's driver loop: control
// passes back and forth over an unbuffered rendezvous channel, so at any instant exactly one
// of {the driver, one Task} is running.
//
// A goroutine's stack plays the role of a coroutine's saved locals, and the rendezvous channel
// plays the role of an explicit yield point.
type Task struct {
	Name     string
	q        *Queue
	resume   chan struct{}
	done     chan struct{}
	finished bool
	Err      error
}

// NewTask creates a Task whose body will run in its own goroutine once StartAt is called. body
// receives the Task so it can Sleep, Block and inspect Err.
func NewTask(q *Queue, name string, body func(t *Task)) *Task {
	t := &Task{q: q, Name: name, resume: make(chan struct{}), done: make(chan struct{})}
	go func() {
		<-t.resume
		body(t)
		t.finished = true
		t.done <- struct{}{}
	}()
	return t
}

// resumeClosure is the Queue.Event.Resume callback used for every scheduled wakeup of this
// task: it hands control to the task goroutine and blocks the driver until the task yields
// control back (by calling Sleep/Block again, or by finishing).
func (t *Task) resumeClosure(any) {
	if t.finished {
		return
	}
	t.resume <- struct{}{}
	<-t.done
}

// StartAt schedules the task's first resumption at simulation time `at`.
func (t *Task) StartAt(at float64) {
	t.q.Schedule(at, nil, t.resumeClosure)
}

// scheduleResume arranges for this task to be woken at time `at`, in queue order.
func (t *Task) scheduleResume(at float64) {
	t.q.Schedule(at, nil, t.resumeClosure)
}

// Sleep suspends the calling task until simulation time `until`, returning control to the
// driver (or to whichever task resumed this one) in the meantime.
func (t *Task) Sleep(until float64) {
	t.scheduleResume(until)
	t.yield()
}

// ScheduleWake arranges a future resumption and returns the underlying Event so a third party
// (e.g. a dispatch decision made while this task sleeps) can cancel it with Queue.Cancel and
// call Wake to resume the task early instead — used for a CHARGE process cut short by dispatch.
func (t *Task) ScheduleWake(at float64) *Event {
	return t.q.Schedule(at, nil, t.resumeClosure)
}

// Yield hands control back to whoever resumed this task and blocks until resumed again. Pair
// with ScheduleWake for a cancelable sleep.
func (t *Task) Yield() { t.yield() }

// Block suspends the calling task indefinitely. Some other code running on the driver
// goroutine (typically a Resource release or a Store put) must call Wake to resume it.
func (t *Task) Block() {
	t.yield()
}

// Wake schedules an immediately-blocked task to resume at the current simulation time. Must be
// called from the driver goroutine (i.e. from inside another Task's body, or a Queue.Resume
// callback), never from the blocked task's own goroutine.
func (t *Task) Wake() {
	t.scheduleResume(t.q.Now())
}

// yield hands control back to whoever resumed this task, then blocks until resumed again.
func (t *Task) yield() {
	t.done <- struct{}{}
	<-t.resume
}

// Finished reports whether the task's body has returned.
func (t *Task) Finished() bool { return t.finished }
