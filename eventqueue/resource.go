package eventqueue

import "sort"

// Resource is a capacity-limited container of anonymous slots, acquired and released by Tasks.
// Waiters are woken in priority order (lower value first), ties broken by arrival order.
//
// A Resource may also carry a schedule of break windows (ResourceSwitch): during a
// window its effective capacity changes, and if the window preempts, holders in excess of the
// reduced capacity are evicted synchronously via their registered onPreempt callback.
type Resource struct {
	q        *Queue
	capacity int
	base     int
	inUse    int
	nextSeq  int64
	waiters  []*resourceWaiter
	holders  []*resourceHolder
}

type resourceWaiter struct {
	task      *Task
	priority  int
	seq       int64
	onPreempt func()
}

type resourceHolder struct {
	task      *Task
	priority  int
	onPreempt func()
}

// NewResource creates a Resource with the given base capacity.
func NewResource(q *Queue, capacity int) *Resource {
	return &Resource{q: q, capacity: capacity, base: capacity}
}

// InUse reports how many slots are currently held.
func (r *Resource) InUse() int { return r.inUse }

// Capacity reports the current effective capacity (base capacity as modified by any active
// switch window).
func (r *Resource) Capacity() int { return r.capacity }

// Acquire blocks the calling task until a slot is free, then holds it. onPreempt, if non-nil,
// is invoked (on the driver goroutine, not the caller's) if a later break window forcibly
// evicts this holder; the caller is responsible for noticing eviction next time it runs, e.g.
// by checking a flag onPreempt sets.
func (r *Resource) Acquire(t *Task, priority int, onPreempt func()) {
	if r.inUse < r.capacity {
		r.inUse++
		r.holders = append(r.holders, &resourceHolder{task: t, priority: priority, onPreempt: onPreempt})
		return
	}
	w := &resourceWaiter{task: t, priority: priority, seq: r.nextSeq, onPreempt: onPreempt}
	r.nextSeq++
	r.waiters = append(r.waiters, w)
	t.Block()
	// Woken by admitWaiter, which already reserved the slot and registered the holder.
}

// Release frees one slot held by t and wakes the highest-priority waiter, if any. Releasing a
// lease that was already evicted by a break window is a no-op.
func (r *Resource) Release(t *Task) {
	for i, h := range r.holders {
		if h.task == t {
			r.holders = append(r.holders[:i], r.holders[i+1:]...)
			r.inUse--
			r.admitWaiter()
			return
		}
	}
}

func (r *Resource) admitWaiter() {
	if len(r.waiters) == 0 || r.inUse >= r.capacity {
		return
	}
	sort.SliceStable(r.waiters, func(i, j int) bool {
		if r.waiters[i].priority != r.waiters[j].priority {
			return r.waiters[i].priority < r.waiters[j].priority
		}
		return r.waiters[i].seq < r.waiters[j].seq
	})
	w := r.waiters[0]
	r.waiters = r.waiters[1:]
	// Reserve the slot now, before the woken task actually resumes: otherwise a second
	// release (or a restored switch window) at the same instant could admit more waiters
	// than slots exist.
	r.inUse++
	r.holders = append(r.holders, &resourceHolder{task: w.task, priority: w.priority, onPreempt: w.onPreempt})
	w.task.Wake()
}

// ApplySwitch sets the capacity in force at the start of a break window. If preempt is true,
// holders in excess of that capacity are evicted, least urgent first; EndSwitch restores the
// base capacity when the window ends.
func (r *Resource) ApplySwitch(sw_capacityDuring int, preempt bool) {
	r.capacity = sw_capacityDuring
	if !preempt {
		return
	}
	for r.inUse > r.capacity && len(r.holders) > 0 {
		// Evict the least urgent holder (highest priority value) first.
		evictIdx := 0
		for i, h := range r.holders[1:] {
			if h.priority > r.holders[evictIdx].priority {
				evictIdx = i + 1
			}
		}
		h := r.holders[evictIdx]
		r.holders = append(r.holders[:evictIdx], r.holders[evictIdx+1:]...)
		r.inUse--
		if h.onPreempt != nil {
			h.onPreempt()
		}
	}
}

// EndSwitch restores base capacity at the end of a break window and admits as many waiters as
// now fit.
func (r *Resource) EndSwitch() {
	r.capacity = r.base
	for r.inUse < r.capacity && len(r.waiters) > 0 {
		r.admitWaiter()
	}
}
