package application

import "sync"

// keyedMutex serializes balance mutation per creator. Two concurrent payout
// requests, or a refund racing a payout, for the same creator take the same
// lock; different creators proceed in parallel with no global lock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*creatorLock
}

type creatorLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*creatorLock)}
}

func (k *keyedMutex) Lock(key string) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &creatorLock{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()
	entry.mu.Lock()
}

func (k *keyedMutex) Unlock(key string) {
	k.mu.Lock()
	entry := k.locks[key]
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
	entry.mu.Unlock()
}
