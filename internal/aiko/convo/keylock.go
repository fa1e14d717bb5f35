package convo

import "sync"

// KeyedLock serializes in-flight completions per conversation key. The data
// operations on the stores are individually synchronized, but a chat turn
// spans two mutations with an outbound network call between them; holding
// the key's lock across the whole turn keeps two concurrent completions for
// the same conversation from interleaving their history writes.
//
// Locks are created on first use and kept for the process lifetime; the
// per-key footprint is one mutex, which is negligible next to the
// conversation history itself.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedLock returns an empty KeyedLock.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use.
func (k *KeyedLock) Lock(key string) {
	k.get(key).Lock()
}

// Unlock releases the mutex for key. Panics (as sync.Mutex does) when the
// key was never locked.
func (k *KeyedLock) Unlock(key string) {
	k.get(key).Unlock()
}

func (k *KeyedLock) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m := k.locks[key]
	if m == nil {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}
