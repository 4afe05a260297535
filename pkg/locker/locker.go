// Package locker provides mutual exclusion keyed by an identifier. Entries are
// reference counted so a key only occupies memory while someone holds or waits
// for its lock.
package locker

import (
	"sync"
)

// Locker manages one mutex per key.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockRef
}

type lockRef struct {
	mu   sync.Mutex
	refs int
}

func New() *Locker {
	return &Locker{locks: make(map[string]*lockRef)}
}

// Acquire blocks until the lock for id is held by the caller.
func (l *Locker) Acquire(id string) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*lockRef)
	}
	ref, ok := l.locks[id]
	if !ok {
		ref = &lockRef{}
		l.locks[id] = ref
	}
	ref.refs++
	l.mu.Unlock()

	ref.mu.Lock()
}

// Release unlocks id. Releasing a key that is not held is a no-op.
func (l *Locker) Release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ref, ok := l.locks[id]
	if !ok {
		return
	}
	ref.refs--
	if ref.refs <= 0 {
		delete(l.locks, id)
	}
	ref.mu.Unlock()
}

// Len returns the number of keys currently held or waited on.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
