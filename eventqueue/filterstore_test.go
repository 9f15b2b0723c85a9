package eventqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterStoreGetBlocksUntilMatch(t *testing.T) {
	q := New()
	s := NewFilterStore[int](q)
	var got int

	consumer := NewTask(q, "consumer", func(self *Task) {
		got = s.Get(self, func(v int) bool { return v%2 == 0 })
	})
	consumer.StartAt(0)

	q.Schedule(1, nil, func(any) { s.Put(1) })
	q.Schedule(2, nil, func(any) { s.Put(3) })
	q.Schedule(3, nil, func(any) { s.Put(4) })

	q.Run(nil)

	assert.Equal(t, 4, got)
	assert.Equal(t, []int{1, 3}, s.Items())
}

func TestFilterStoreGetReturnsImmediatelyIfAlreadyPresent(t *testing.T) {
	q := New()
	s := NewFilterStore[string](q)
	s.Put("a")
	s.Put("bb")
	var got string
	task := NewTask(q, "c", func(self *Task) {
		got = s.Get(self, func(v string) bool { return len(v) == 2 })
	})
	task.StartAt(0)
	q.Run(nil)
	assert.Equal(t, "bb", got)
	assert.Equal(t, []string{"a"}, s.Items())
}
