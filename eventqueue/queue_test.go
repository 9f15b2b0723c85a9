package eventqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOrdersByTimeThenSequence(t *testing.T) {
	q := New()
	var order []string
	q.Schedule(5, nil, func(any) { order = append(order, "a") })
	q.Schedule(1, nil, func(any) { order = append(order, "b") })
	q.Schedule(1, nil, func(any) { order = append(order, "c") })
	q.Run(nil)
	assert.Equal(t, []string{"b", "c", "a"}, order)
}

func TestQueueCancel(t *testing.T) {
	q := New()
	var fired bool
	e := q.Schedule(1, nil, func(any) { fired = true })
	q.Cancel(e)
	q.Run(nil)
	assert.False(t, fired)
}

func TestTaskSleepResumesAtScheduledTime(t *testing.T) {
	q := New()
	var seen []float64
	task := NewTask(q, "t1", func(self *Task) {
		seen = append(seen, q.Now())
		self.Sleep(10)
		seen = append(seen, q.Now())
		self.Sleep(20)
		seen = append(seen, q.Now())
	})
	task.StartAt(0)
	q.Run(nil)
	require.True(t, task.Finished())
	assert.Equal(t, []float64{0, 10, 20}, seen)
}

func TestTwoTasksInterleaveDeterministically(t *testing.T) {
	q := New()
	var log []string
	a := NewTask(q, "a", func(self *Task) {
		log = append(log, "a@0")
		self.Sleep(5)
		log = append(log, "a@5")
	})
	b := NewTask(q, "b", func(self *Task) {
		log = append(log, "b@0")
		self.Sleep(5)
		log = append(log, "b@5")
	})
	a.StartAt(0)
	b.StartAt(0)
	q.Run(nil)
	assert.Equal(t, []string{"a@0", "b@0", "a@5", "b@5"}, log)
}
