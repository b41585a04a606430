package coordinator

import "sync"

// callLocks serializes the read-check-commit sequence per call id so two
// concurrent assignment attempts can never both observe "unassigned".
// Entries live for the process lifetime; the id space is small (active
// calls), so no eviction is needed.
type callLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newCallLocks() *callLocks {
	return &callLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the per-call mutex and returns its release func.
func (l *callLocks) acquire(callID string) func() {
	l.mu.Lock()
	m, ok := l.locks[callID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[callID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
