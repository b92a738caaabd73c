package lifecycle

import "sync"

// keyMutex serializes operations per record id. Entries are never evicted;
// the set of hot ids is bounded by the number of records under review.
type keyMutex struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newKeyMutex() *keyMutex {
	return &keyMutex{locks: make(map[uint]*sync.Mutex)}
}

// Lock acquires the mutex for id and returns its unlock function.
func (k *keyMutex) Lock(id uint) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
