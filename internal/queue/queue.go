// Package queue implements the bounded "keep the best P" retention heap.
package queue

// Bounded is a binary heap ordered by badness: the root is always the worst
// retained element under the worse comparator. Combined with a capacity it
// keeps the best elements seen so far.
type Bounded[T any] struct {
	items []T
	worse func(a, b T) bool
}

// NewBounded creates an empty heap. worse(a, b) reports whether a ranks
// strictly below b.
func NewBounded[T any](worse func(a, b T) bool, capacityHint int) *Bounded[T] {
	return &Bounded[T]{
		items: make([]T, 0, max(capacityHint, 0)),
		worse: worse,
	}
}

// Len returns the number of retained elements.
func (q *Bounded[T]) Len() int { return len(q.items) }

// Items exposes the retained elements in heap order.
// The slice is only valid until the next mutation.
func (q *Bounded[T]) Items() []T { return q.items }

// Push inserts an element regardless of capacity.
func (q *Bounded[T]) Push(item T) {
	q.items = append(q.items, item)
	q.siftUp(len(q.items) - 1)
}

// PeekWorst returns the worst retained element.
func (q *Bounded[T]) PeekWorst() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.items[0], true
}

// PopWorst removes and returns the worst retained element.
func (q *Bounded[T]) PopWorst() (T, bool) {
	var zero T
	n := len(q.items)
	if n == 0 {
		return zero, false
	}
	root := q.items[0]
	last := q.items[n-1]
	q.items[n-1] = zero
	q.items = q.items[:n-1]
	if n-1 > 0 {
		q.items[0] = last
		q.siftDown(0)
	}
	if cap(q.items) > 64 && len(q.items) < cap(q.items)/4 {
		q.items = append(make([]T, 0, cap(q.items)/2), q.items...)
	}
	return root, true
}

// WouldAdmit reports whether Admit would accept candidate, without mutating
// the heap.
func (q *Bounded[T]) WouldAdmit(candidate T, capacity int) bool {
	if capacity <= 0 {
		return false
	}
	if len(q.items) < capacity {
		return true
	}
	return !q.worse(candidate, q.items[0])
}

// Admit inserts candidate if it fits under capacity or is not worse than the
// current worst element, which is then evicted and returned.
// A rejected candidate leaves the heap untouched.
func (q *Bounded[T]) Admit(candidate T, capacity int) (admitted bool, evicted T, didEvict bool) {
	if !q.WouldAdmit(candidate, capacity) {
		return false, evicted, false
	}
	q.Push(candidate)
	if len(q.items) > capacity {
		evicted, didEvict = q.PopWorst()
	}
	return true, evicted, didEvict
}

// Trim evicts worst elements until at most capacity remain.
func (q *Bounded[T]) Trim(capacity int) []T {
	var evicted []T
	for len(q.items) > max(capacity, 0) {
		item, _ := q.PopWorst()
		evicted = append(evicted, item)
	}
	return evicted
}

// Reset drops every element.
func (q *Bounded[T]) Reset() {
	clear(q.items)
	q.items = q.items[:0]
}

func (q *Bounded[T]) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.worse(q.items[i], q.items[p]) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *Bounded[T]) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		worst := l
		r := l + 1
		if r < n && q.worse(q.items[r], q.items[l]) {
			worst = r
		}
		if !q.worse(q.items[worst], q.items[i]) {
			return
		}
		q.items[i], q.items[worst] = q.items[worst], q.items[i]
		i = worst
	}
}
