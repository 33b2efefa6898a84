package ledger

import "sync"

// tagMutex serializes work per tag. Entries are dropped once no goroutine
// holds or waits for them, so the map only grows with concurrent tags.
type tagMutex struct {
	mu    sync.Mutex
	locks map[string]*tagLock
}

type tagLock struct {
	mu   sync.Mutex
	refs int
}

func newTagMutex() *tagMutex {
	return &tagMutex{locks: make(map[string]*tagLock)}
}

// Lock blocks until tag is free and returns the matching unlock func.
func (m *tagMutex) Lock(tag string) func() {
	m.mu.Lock()
	l, ok := m.locks[tag]
	if !ok {
		l = &tagLock{}
		m.locks[tag] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, tag)
		}
		m.mu.Unlock()
	}
}

func (m *tagMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
