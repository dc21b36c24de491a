package scheduler

import "sync"

// Locks is a registry of per-target refresh locks. A pass that cannot
// acquire its lock is skipped, never queued.
type Locks struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocks creates an empty lock registry.
func NewLocks() *Locks {
	return &Locks{held: make(map[string]bool)}
}

// TryAcquire claims the lock for key, returning false if it is held.
func (l *Locks) TryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false
	}
	l.held[key] = true
	return true
}

// Release frees the lock for key.
func (l *Locks) Release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
