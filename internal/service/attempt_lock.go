package service

import "sync"

// AttemptLocker serializes all mutation of one attempt's state: event append,
// aggregation runs and termination must never interleave for the same
// attempt_id. Locks are created on demand and kept for the process lifetime;
// attempt counts are bounded, so the map stays small.
type AttemptLocker struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewAttemptLocker() *AttemptLocker {
	return &AttemptLocker{locks: make(map[uint]*sync.Mutex)}
}

func (l *AttemptLocker) get(attemptID uint) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[attemptID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[attemptID] = m
	}
	return m
}

func (l *AttemptLocker) Lock(attemptID uint) {
	l.get(attemptID).Lock()
}

func (l *AttemptLocker) Unlock(attemptID uint) {
	l.get(attemptID).Unlock()
}
