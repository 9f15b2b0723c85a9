package eventqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineStoreDriveThroughIsFIFO(t *testing.T) {
	q := New()
	s := NewLineStore[string](q, 2, false)
	s.Enter(nil, "first")
	s.Enter(nil, "second")
	assert.True(t, s.Full())

	front, ok := s.Front()
	require.True(t, ok)
	assert.Equal(t, "first", front)
	assert.Equal(t, "first", s.Exit())
	assert.Equal(t, 1, s.Len())

	front, ok = s.Front()
	require.True(t, ok)
	assert.Equal(t, "second", front)
}

func TestLineStoreSameSideIsLIFO(t *testing.T) {
	q := New()
	s := NewLineStore[string](q, 2, true)
	s.Enter(nil, "first")
	s.Enter(nil, "second")

	front, ok := s.Front()
	require.True(t, ok)
	assert.Equal(t, "second", front)
	assert.Equal(t, "second", s.Exit())

	front, ok = s.Front()
	require.True(t, ok)
	assert.Equal(t, "first", front)
}

func TestLineStoreExitWhenWaitsForBuriedItem(t *testing.T) {
	q := New()
	s := NewLineStore[string](q, 3, true)
	s.Enter(nil, "A")
	s.Enter(nil, "B")
	s.Enter(nil, "C")
	assert.True(t, s.Full())

	var got string
	waiter := NewTask(q, "wants-A", func(self *Task) {
		got = s.ExitWhen(self, func(v string) bool { return v == "A" })
	})
	waiter.StartAt(0)

	// A sits deepest; C then B must leave before the predicate waiter can have it.
	q.Schedule(1, nil, func(any) { assert.Equal(t, "C", s.Exit()) })
	q.Schedule(2, nil, func(any) { assert.Equal(t, "B", s.Exit()) })
	q.Run(nil)

	assert.Equal(t, "A", got)
	assert.Equal(t, 0, s.Len())
}

func TestLineStoreEnterBlocksWhenFull(t *testing.T) {
	q := New()
	s := NewLineStore[int](q, 1, false)
	s.Enter(nil, 1)

	var entered bool
	task := NewTask(q, "waiter", func(self *Task) {
		s.Enter(self, 2)
		entered = true
	})
	task.StartAt(0)
	q.Schedule(5, nil, func(any) { s.Exit() })
	q.Run(nil)

	assert.True(t, entered)
	assert.Equal(t, 1, s.Len())
	v, ok := s.Front()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}
