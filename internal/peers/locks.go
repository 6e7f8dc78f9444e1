package peers

import "sync"

// nameLocks serializes read-modify-write sequences per peer name so two
// concurrent requests touching the same record cannot lose an update.
// Entries live for the process lifetime; the set is bounded by the number
// of distinct peer names seen.
type nameLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newNameLocks() *nameLocks {
	return &nameLocks{m: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for name and returns its unlock function.
func (l *nameLocks) acquire(name string) func() {
	l.mu.Lock()
	lock, ok := l.m[name]
	if !ok {
		lock = &sync.Mutex{}
		l.m[name] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
