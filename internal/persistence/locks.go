package persistence

import "sync"

// jobLocks serializes writes per job id. Each id gets its own mutex, so
// different jobs save concurrently while writes to one job never interleave.
type jobLocks struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-job mutexes
}

func newJobLocks() *jobLocks {
	return &jobLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for id, creating it on first use.
func (l *jobLocks) Lock(id string) {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	// Acquired outside the map lock so other ids are not blocked
	m.Lock()
}

// Unlock releases the mutex for id.
func (l *jobLocks) Unlock(id string) {
	l.mu.Lock()
	m, ok := l.locks[id]
	l.mu.Unlock()

	if ok {
		m.Unlock()
	}
}
