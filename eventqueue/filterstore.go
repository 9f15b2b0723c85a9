package eventqueue

// FilterStore holds items of type T and lets Tasks block until an item matching an arbitrary
// predicate becomes available, then removes and returns it.
//
// Put always succeeds; Get blocks on a predicate rather than on FIFO order, and re-evaluates
// every predicate waiter whenever the contents change.
type FilterStore[T any] struct {
	q       *Queue
	items   []T
	getters []*filterGetter[T]
}

type filterGetter[T any] struct {
	task   *Task
	pred   func(T) bool
	result *T
	ok     *bool
}

// NewFilterStore creates an empty FilterStore.
func NewFilterStore[T any](q *Queue) *FilterStore[T] {
	return &FilterStore[T]{q: q}
}

// Put adds an item and wakes any waiting Get whose predicate it satisfies (first-registered
// waiter wins when several match).
func (s *FilterStore[T]) Put(item T) {
	s.items = append(s.items, item)
	s.tryMatch()
}

// Items returns a snapshot of the current contents.
func (s *FilterStore[T]) Items() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Get blocks the calling task until an item satisfying pred is available, removes it from the
// store and returns it.
func (s *FilterStore[T]) Get(t *Task, pred func(T) bool) T {
	for i, it := range s.items {
		if pred(it) {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return it
		}
	}
	var result T
	ok := false
	g := &filterGetter[T]{task: t, pred: pred, result: &result, ok: &ok}
	s.getters = append(s.getters, g)
	t.Block()
	return result
}

func (s *FilterStore[T]) tryMatch() {
	for len(s.getters) > 0 {
		matchedAny := false
		for gi, g := range s.getters {
			for i, it := range s.items {
				if g.pred(it) {
					*g.result = it
					*g.ok = true
					s.items = append(s.items[:i], s.items[i+1:]...)
					s.getters = append(s.getters[:gi], s.getters[gi+1:]...)
					g.task.Wake()
					matchedAny = true
					break
				}
			}
			if matchedAny {
				break
			}
		}
		if !matchedAny {
			return
		}
	}
}
