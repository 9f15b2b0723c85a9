package eventqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceBlocksAtCapacity(t *testing.T) {
	q := New()
	r := NewResource(q, 1)
	var log []string

	first := NewTask(q, "first", func(self *Task) {
		r.Acquire(self, 0, nil)
		log = append(log, "first-acquired")
		self.Sleep(5)
		r.Release(self)
		log = append(log, "first-released")
	})
	second := NewTask(q, "second", func(self *Task) {
		r.Acquire(self, 0, nil)
		log = append(log, "second-acquired")
		r.Release(self)
	})
	first.StartAt(0)
	second.StartAt(0)
	q.Run(nil)

	assert.Equal(t, []string{"first-acquired", "first-released", "second-acquired"}, log)
}

func TestResourceAdmitsHighestPriorityWaiterFirst(t *testing.T) {
	q := New()
	r := NewResource(q, 1)
	var order []string

	holder := NewTask(q, "holder", func(self *Task) {
		r.Acquire(self, 0, nil)
		self.Sleep(1)
		r.Release(self)
	})
	low := NewTask(q, "low", func(self *Task) {
		r.Acquire(self, 10, nil)
		order = append(order, "low")
		r.Release(self)
	})
	high := NewTask(q, "high", func(self *Task) {
		r.Acquire(self, 1, nil)
		order = append(order, "high")
		r.Release(self)
	})
	holder.StartAt(0)
	low.StartAt(0)
	high.StartAt(0)
	q.Run(nil)

	assert.Equal(t, []string{"high", "low"}, order)
}

func TestResourceSwitchPreemptsExcessHolders(t *testing.T) {
	q := New()
	r := NewResource(q, 2)
	var preempted bool

	holder := NewTask(q, "holder", func(self *Task) {
		r.Acquire(self, 0, func() { preempted = true })
		self.Sleep(100)
	})
	holder.StartAt(0)

	q.Schedule(10, nil, func(any) { r.ApplySwitch(0, true) })
	q.Run(func(t float64) bool { return t >= 11 })

	assert.True(t, preempted)
	assert.Equal(t, 0, r.InUse())
}
