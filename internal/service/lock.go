package service

import "sync"

// StageLocks serializes all mutating operations on one stage while
// letting different stages proceed in parallel. The lock is advisory
// over and above database locking; it exists so every operation can be
// reasoned about as a critical section.
type StageLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStageLocks() *StageLocks {
	return &StageLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *StageLocks) Lock(stageID string) func() {
	l.mu.Lock()
	m, ok := l.locks[stageID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[stageID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
