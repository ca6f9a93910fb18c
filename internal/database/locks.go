package database

import "sync"

// NamespaceLocks serializes writes per namespace. Reads do not take it.
type NamespaceLocks struct {
	mu    sync.Mutex
	locks map[Namespace]*sync.Mutex
}

// Lock acquires the write lock of ns and returns its unlock function.
func (l *NamespaceLocks) Lock(ns Namespace) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[Namespace]*sync.Mutex)
	}
	m, ok := l.locks[ns]
	if !ok {
		m = &sync.Mutex{}
		l.locks[ns] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
