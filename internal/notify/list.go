// Package notify provides a copy-on-write listener list.
package notify

import "sync"

// List holds callbacks of type F. Registration and removal copy the backing
// slice so Snapshot can be iterated without holding the lock.
type List[F any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries []entry[F]
}

type entry[F any] struct {
	id uint64
	fn F
}

// Add registers fn and returns a function that removes it. The remover is
// idempotent.
func (l *List[F]) Add(fn F) (remove func()) {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	next := make([]entry[F], len(l.entries), len(l.entries)+1)
	copy(next, l.entries)
	l.entries = append(next, entry[F]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *List[F]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := make([]entry[F], 0, len(l.entries))
	for _, e := range l.entries {
		if e.id != id {
			next = append(next, e)
		}
	}
	l.entries = next
}

// Snapshot returns the callbacks registered at the time of the call.
func (l *List[F]) Snapshot() []F {
	l.mu.Lock()
	entries := l.entries
	l.mu.Unlock()
	out := make([]F, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.fn)
	}
	return out
}

// Len reports the number of registered callbacks.
func (l *List[F]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
